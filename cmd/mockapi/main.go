// Command mockapi serves Frost- and Open-Meteo-shaped responses with
// deterministic synthetic data, so harvest runs can be exercised locally
// without credentials or rate limits.
//
// Usage:
//
//	go run ./cmd/mockapi -addr :8081
//	FROST_BASE_URL=http://localhost:8081/observations/v0.jsonld \
//	OPEN_METEO_BASE_URL=http://localhost:8081/v1/archive \
//	FROST_CLIENT_ID=mock go run ./cmd/harvest
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"net/http"
	"strings"
	"time"
)

func main() {
	addr := flag.String("addr", ":8081", "listen address")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /observations/v0.jsonld", handleFrost)
	mux.HandleFunc("GET /v1/archive", handleArchive)

	log.Printf("mockapi listening on %s", *addr)
	log.Fatal(http.ListenAndServe(*addr, mux))
}

// synth produces a deterministic plausible value for an element at an hour:
// a diurnal sine for radiation, a seasonal curve for temperature, and a
// station-seeded pseudo-random fraction for the rest.
func synth(seed string, element string, t time.Time) float64 {
	h := fnv.New32a()
	h.Write([]byte(seed))
	h.Write([]byte(element))
	jitter := float64(h.Sum32()%100) / 100

	hour := float64(t.Hour())
	day := float64(t.YearDay())
	switch {
	case strings.Contains(element, "radiation") || strings.Contains(element, "flux"):
		v := 400 * math.Sin((hour-6)/12*math.Pi)
		if v < 0 {
			return 0
		}
		return v * (0.7 + 0.3*jitter)
	case strings.Contains(element, "temperature"):
		return -5 + 15*math.Sin((day-80)/365*2*math.Pi) + 3*math.Sin(hour/24*2*math.Pi) + jitter
	case strings.Contains(element, "snow"):
		if day > 90 && day < 300 {
			return 0
		}
		return 0.3 * (0.5 + jitter)
	default:
		return 100 * jitter
	}
}

func handleFrost(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end, err := parseInterval(q.Get("referencetime"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	station := q.Get("sources")
	elements := strings.Split(q.Get("elements"), ",")

	type obs struct {
		ElementID string  `json:"elementId"`
		Value     float64 `json:"value"`
	}
	type set struct {
		ReferenceTime string `json:"referenceTime"`
		Observations  []obs  `json:"observations"`
	}

	var data []set
	for t := start; t.Before(end); t = t.Add(time.Hour) {
		s := set{ReferenceTime: t.UTC().Format("2006-01-02T15:04:05.000Z")}
		for _, el := range elements {
			s.Observations = append(s.Observations, obs{ElementID: el, Value: synth(station, el, t)})
		}
		data = append(data, s)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func handleArchive(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := time.ParseInLocation("2006-01-02", q.Get("start_date"), time.UTC)
	if err != nil {
		http.Error(w, "bad start_date", http.StatusBadRequest)
		return
	}
	end, err := time.ParseInLocation("2006-01-02", q.Get("end_date"), time.UTC)
	if err != nil {
		http.Error(w, "bad end_date", http.StatusBadRequest)
		return
	}
	seed := q.Get("latitude") + "," + q.Get("longitude")
	vars := strings.Split(q.Get("hourly"), ",")

	hourly := map[string]any{}
	var times []string
	series := make(map[string][]float64, len(vars))
	for t := start; !t.After(end); t = t.Add(time.Hour) {
		times = append(times, t.Format("2006-01-02T15:04"))
		for _, v := range vars {
			series[v] = append(series[v], synth(seed, v, t))
		}
	}
	hourly["time"] = times
	for v, col := range series {
		hourly[v] = col
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"hourly": hourly})
}

func parseInterval(s string) (time.Time, time.Time, error) {
	startStr, endStr, ok := strings.Cut(s, "/")
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("referencetime %q is not start/end", s)
	}
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad start %q", startStr)
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad end %q", endStr)
	}
	return start, end, nil
}
