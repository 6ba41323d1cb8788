package mbus

import (
	"encoding/xml"
	"fmt"
)

// XML document shapes emitted by mbus-serial-request-data / mbus-tcp-request-data.
type xmlMBusData struct {
	XMLName     xml.Name        `xml:"MBusData"`
	SlaveInfo   *xmlSlaveInfo   `xml:"SlaveInformation"`
	DataRecords []xmlDataRecord `xml:"DataRecord"`
}

type xmlSlaveInfo struct {
	ID           string `xml:"Id"`
	Manufacturer string `xml:"Manufacturer"`
	Version      string `xml:"Version"`
	ProductName  string `xml:"ProductName"`
	Medium       string `xml:"Medium"`
	AccessNumber string `xml:"AccessNumber"`
	Status       string `xml:"Status"`
	Signature    string `xml:"Signature"`
}

type xmlDataRecord struct {
	ID            string `xml:"id,attr"`
	Function      string `xml:"Function"`
	StorageNumber string `xml:"StorageNumber"`
	Tariff        string `xml:"Tariff"`
	Device        string `xml:"Device"`
	Unit          string `xml:"Unit"`
	Value         string `xml:"Value"`
	Timestamp     string `xml:"Timestamp"`
}

// ParseReading parses a libmbus XML response into a Reading.
//
// Records without an id attribute are skipped; a response without a
// SlaveInformation element is rejected as malformed.
func ParseReading(data []byte) (*Reading, error) {
	var doc xmlMBusData
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing response XML: %w", err)
	}

	if doc.SlaveInfo == nil {
		return nil, fmt.Errorf("parsing response XML: missing SlaveInformation element")
	}

	reading := &Reading{
		Slave: SlaveInfo{
			ID:           doc.SlaveInfo.ID,
			Manufacturer: doc.SlaveInfo.Manufacturer,
			Version:      doc.SlaveInfo.Version,
			ProductName:  doc.SlaveInfo.ProductName,
			Medium:       doc.SlaveInfo.Medium,
			AccessNumber: doc.SlaveInfo.AccessNumber,
			Status:       doc.SlaveInfo.Status,
			Signature:    doc.SlaveInfo.Signature,
		},
	}

	for _, rec := range doc.DataRecords {
		if rec.ID == "" {
			continue
		}
		reading.Records = append(reading.Records, DataRecord{
			ID:            rec.ID,
			Function:      rec.Function,
			StorageNumber: rec.StorageNumber,
			Tariff:        rec.Tariff,
			Device:        rec.Device,
			Unit:          rec.Unit,
			Value:         rec.Value,
			Timestamp:     rec.Timestamp,
		})
	}

	return reading, nil
}
