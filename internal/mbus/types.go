package mbus

// SlaveInfo holds device identity fields from an M-Bus response.
// All fields are the raw strings reported by libmbus; empty means the device
// did not report the field.
type SlaveInfo struct {
	ID           string
	Manufacturer string
	Version      string
	ProductName  string
	Medium       string
	AccessNumber string
	Status       string
	Signature    string
}

// DataRecord is a single metering value from an M-Bus response.
type DataRecord struct {
	// ID is the record identifier, unique within one response.
	// Record ids are small decimal strings ("0", "1", ...).
	ID string

	Function      string
	StorageNumber string
	Tariff        string
	Device        string
	Unit          string
	Value         string
	Timestamp     string
}

// Reading is the parsed result of one successful poll. It reflects exactly
// one poll attempt; a failed poll never produces a partial Reading.
type Reading struct {
	Slave SlaveInfo

	// Records preserves the response order.
	Records []DataRecord
}

// Record returns the data record with the given id.
func (r *Reading) Record(id string) (DataRecord, bool) {
	for _, rec := range r.Records {
		if rec.ID == id {
			return rec, true
		}
	}
	return DataRecord{}, false
}

// RecordIDs returns the record ids in response order.
func (r *Reading) RecordIDs() []string {
	ids := make([]string, 0, len(r.Records))
	for _, rec := range r.Records {
		ids = append(ids, rec.ID)
	}
	return ids
}

// ProductName returns the reported product name, falling back to a generic
// label when the device does not report one.
func (r *Reading) ProductName() string {
	if r.Slave.ProductName != "" {
		return r.Slave.ProductName
	}
	return "M-Bus Device"
}
