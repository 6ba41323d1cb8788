package mbus

import (
	"testing"
)

// sampleXML mirrors a typical mbus-serial-request-data response for a
// water meter.
const sampleXML = `<?xml version="1.0" encoding="ISO-8859-1"?>
<MBusData>
    <SlaveInformation>
        <Id>12345678</Id>
        <Manufacturer>KAM</Manufacturer>
        <Version>27</Version>
        <ProductName>Kamstrup MULTICAL 21</ProductName>
        <Medium>Cold water</Medium>
        <AccessNumber>42</AccessNumber>
        <Status>00</Status>
        <Signature>0000</Signature>
    </SlaveInformation>
    <DataRecord id="0">
        <Function>Instantaneous value</Function>
        <StorageNumber>0</StorageNumber>
        <Unit>Fabrication number</Unit>
        <Value>12345678</Value>
        <Timestamp>2026-08-25T10:00:00Z</Timestamp>
    </DataRecord>
    <DataRecord id="1">
        <Function>Instantaneous value</Function>
        <StorageNumber>0</StorageNumber>
        <Unit>Volume (m m^3)</Unit>
        <Value>123.4</Value>
        <Timestamp>2026-08-25T10:00:00Z</Timestamp>
    </DataRecord>
</MBusData>`

func TestParseReading(t *testing.T) {
	reading, err := ParseReading([]byte(sampleXML))
	if err != nil {
		t.Fatalf("ParseReading() error = %v", err)
	}

	if reading.Slave.ID != "12345678" {
		t.Errorf("Slave.ID = %q, want %q", reading.Slave.ID, "12345678")
	}
	if reading.Slave.Manufacturer != "KAM" {
		t.Errorf("Slave.Manufacturer = %q, want %q", reading.Slave.Manufacturer, "KAM")
	}
	if reading.Slave.ProductName != "Kamstrup MULTICAL 21" {
		t.Errorf("Slave.ProductName = %q, want %q", reading.Slave.ProductName, "Kamstrup MULTICAL 21")
	}
	if reading.Slave.Medium != "Cold water" {
		t.Errorf("Slave.Medium = %q, want %q", reading.Slave.Medium, "Cold water")
	}

	if len(reading.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(reading.Records))
	}

	rec, ok := reading.Record("1")
	if !ok {
		t.Fatal("Record(\"1\") not found")
	}
	if rec.Value != "123.4" {
		t.Errorf("record 1 Value = %q, want %q", rec.Value, "123.4")
	}
	if rec.Unit != "Volume (m m^3)" {
		t.Errorf("record 1 Unit = %q, want %q", rec.Unit, "Volume (m m^3)")
	}
}

func TestParseReadingRecordOrder(t *testing.T) {
	reading, err := ParseReading([]byte(sampleXML))
	if err != nil {
		t.Fatalf("ParseReading() error = %v", err)
	}

	ids := reading.RecordIDs()
	want := []string{"0", "1"}
	if len(ids) != len(want) {
		t.Fatalf("RecordIDs() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("RecordIDs()[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestParseReadingInvalidXML(t *testing.T) {
	_, err := ParseReading([]byte("not xml at all"))
	if err == nil {
		t.Fatal("ParseReading() expected error for invalid XML")
	}
}

func TestParseReadingMissingSlaveInformation(t *testing.T) {
	_, err := ParseReading([]byte(`<MBusData><DataRecord id="0"><Value>1</Value></DataRecord></MBusData>`))
	if err == nil {
		t.Fatal("ParseReading() expected error for missing SlaveInformation")
	}
}

func TestParseReadingSkipsRecordsWithoutID(t *testing.T) {
	xml := `<MBusData>
        <SlaveInformation><Id>1</Id></SlaveInformation>
        <DataRecord><Value>ignored</Value></DataRecord>
        <DataRecord id="0"><Value>kept</Value></DataRecord>
    </MBusData>`

	reading, err := ParseReading([]byte(xml))
	if err != nil {
		t.Fatalf("ParseReading() error = %v", err)
	}
	if len(reading.Records) != 1 {
		t.Fatalf("len(Records) = %d, want 1", len(reading.Records))
	}
	if reading.Records[0].Value != "kept" {
		t.Errorf("Records[0].Value = %q, want %q", reading.Records[0].Value, "kept")
	}
}

func TestReadingProductNameFallback(t *testing.T) {
	reading := &Reading{Slave: SlaveInfo{ID: "99"}}
	if got := reading.ProductName(); got != "M-Bus Device" {
		t.Errorf("ProductName() = %q, want %q", got, "M-Bus Device")
	}

	reading.Slave.ProductName = "ACME Meter"
	if got := reading.ProductName(); got != "ACME Meter" {
		t.Errorf("ProductName() = %q, want %q", got, "ACME Meter")
	}
}
