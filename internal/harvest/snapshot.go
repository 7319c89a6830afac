package harvest

import (
	"encoding/json"
	"fmt"
)

// EncodeSnapshot serializes rec for the summary row's lossless copy. The
// sockeye-per-delivery map lives in its own table and is left out.
func EncodeSnapshot(rec DailyHarvestRecord) ([]byte, error) {
	rec.SockeyePerDelivery = nil
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot %s: %w", rec.RunDate, err)
	}
	return data, nil
}

// DecodeSnapshot restores a record written by EncodeSnapshot.
func DecodeSnapshot(data []byte) (DailyHarvestRecord, error) {
	var rec DailyHarvestRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return DailyHarvestRecord{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if rec.Districts == nil {
		rec.Districts = []DistrictObservation{}
	}
	if rec.Rivers == nil {
		rec.Rivers = []RiverObservation{}
	}
	rec.SockeyePerDelivery = map[string]float64{}
	return rec, nil
}
