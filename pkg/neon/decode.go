package neon

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/model"
)

// number accepts JSON numbers, numeric strings and null. Null and the empty
// string decode to zero.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid numeric value %s", b)
	}
	*n = number(f)
	return nil
}

// timestamp is display only, so anything unparseable decodes to zero.
type timestamp time.Time

func (t *timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*t = timestamp{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		*t = timestamp{}
		return nil
	}
	*t = timestamp(parsed.UTC())
	return nil
}

func (t timestamp) Time() time.Time { return time.Time(t) }

type projectResponse struct {
	Project *projectRecord `json:"project"`
}

type projectRecord struct {
	ID                     string    `json:"id"`
	ComputeTimeSeconds     number    `json:"compute_time_seconds"`
	DataStorageBytesHour   number    `json:"data_storage_bytes_hour"`
	DataTransferBytes      number    `json:"data_transfer_bytes"`
	ConsumptionPeriodStart timestamp `json:"consumption_period_start"`
	ConsumptionPeriodEnd   timestamp `json:"consumption_period_end"`
	Owner                  *struct {
		SubscriptionType string `json:"subscription_type"`
	} `json:"owner"`
}

type consumptionResponse struct {
	Projects []consumptionProject `json:"projects"`
}

type consumptionProject struct {
	ProjectID string              `json:"project_id"`
	Periods   []consumptionPeriod `json:"periods"`
}

type consumptionPeriod struct {
	PeriodID    string             `json:"period_id"`
	PeriodPlan  string             `json:"period_plan"`
	PeriodStart timestamp          `json:"period_start"`
	PeriodEnd   timestamp          `json:"period_end"`
	Consumption []consumptionEntry `json:"consumption"`
}

type consumptionEntry struct {
	ComputeTimeSeconds   number `json:"compute_time_seconds"`
	DataStorageBytesHour number `json:"data_storage_bytes_hour"`
	DataTransferBytes    number `json:"data_transfer_bytes"`
}

// periodRecord is one billing-period record, whatever endpoint it came from.
type periodRecord struct {
	id      string
	plan    string
	start   time.Time
	end     time.Time
	compute float64
	storage float64
	egress  float64
}

func (r *projectRecord) record() periodRecord {
	rec := periodRecord{
		id:      r.ID,
		start:   r.ConsumptionPeriodStart.Time(),
		end:     r.ConsumptionPeriodEnd.Time(),
		compute: float64(r.ComputeTimeSeconds),
		storage: float64(r.DataStorageBytesHour),
		egress:  float64(r.DataTransferBytes),
	}
	if r.Owner != nil {
		rec.plan = r.Owner.SubscriptionType
	}
	return rec
}

// currentRecords flattens the consumption history into one record per
// period that is still open at now.
func (r *consumptionResponse) currentRecords(projectID string, now time.Time) []periodRecord {
	var out []periodRecord
	for _, p := range r.Projects {
		if p.ProjectID != "" && p.ProjectID != projectID {
			continue
		}
		for _, period := range p.Periods {
			end := period.PeriodEnd.Time()
			if !end.IsZero() && !end.After(now) {
				continue
			}
			rec := periodRecord{
				id:    period.PeriodID,
				plan:  period.PeriodPlan,
				start: period.PeriodStart.Time(),
				end:   end,
			}
			for _, c := range period.Consumption {
				rec.compute += nonNegative(float64(c.ComputeTimeSeconds))
				rec.storage += nonNegative(float64(c.DataStorageBytesHour))
				rec.egress += nonNegative(float64(c.DataTransferBytes))
			}
			out = append(out, rec)
		}
	}
	return out
}

// normalize folds period records into a single snapshot. Several records
// for the current period (e.g. after a mid-period plan change) are summed
// in start-time order; the plan of the latest record wins. The snapshot's
// window spans all records and stays open-ended if any record is open.
func normalize(projectID string, records []periodRecord) model.UsageSnapshot {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].start.Equal(records[j].start) {
			return records[i].start.Before(records[j].start)
		}
		return records[i].id < records[j].id
	})

	snap := model.UsageSnapshot{ProjectID: projectID, Records: len(records)}
	open := false
	for _, r := range records {
		snap.ComputeTimeSeconds += nonNegative(r.compute)
		snap.StorageBytesHour += nonNegative(r.storage)
		snap.EgressBytes += nonNegative(r.egress)

		if r.plan != "" {
			snap.Plan = strings.ToLower(r.plan)
		}
		if !r.start.IsZero() && (snap.PeriodStart.IsZero() || r.start.Before(snap.PeriodStart)) {
			snap.PeriodStart = r.start
		}
		if r.end.IsZero() {
			open = true
		} else if r.end.After(snap.PeriodEnd) {
			snap.PeriodEnd = r.end
		}
	}
	if open {
		snap.PeriodEnd = time.Time{}
	}
	return snap
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
