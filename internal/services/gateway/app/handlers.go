package app

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"sync"
	"time"
)

func (g *Gateway) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.HTTPTimeout)
	defer cancel()

	var (
		wg     sync.WaitGroup
		pots   []Reading
		phases []PhaseResult
		health TowerHealth
	)
	var potsErr, phasesErr, towerErr error
	// Fetch in parallelo
	wg.Add(3)
	go func() {
		defer wg.Done()
		potsErr = g.readings.GetJSON(ctx, &pots)
	}()
	go func() {
		defer wg.Done()
		phasesErr = g.phases.GetJSON(ctx, &phases)
	}()
	go func() {
		defer wg.Done()
		// a halted tower answers 503 with the same body
		towerErr = g.health.GetJSON(ctx, &health, http.StatusServiceUnavailable)
	}()
	wg.Wait()

	data := DashboardData{
		Pots:   []Reading{},
		Phases: []PhaseResult{},
		Upstreams: map[string]string{
			"tower-readings": g.readings.State(),
			"tower-health":   g.health.State(),
			"events":         g.phases.State(),
		},
	}
	if potsErr == nil && pots != nil {
		data.Pots = pots
	}
	if towerErr == nil {
		data.Tower = &health
	}

	g.mu.Lock()
	if phasesErr == nil && len(phases) > 0 {
		g.lastGoodPhases = phases
		data.Phases = phases
	} else if g.lastGoodPhases != nil {
		// usa l'ultima cache valida
		data.Phases = g.lastGoodPhases
		data.Stale = true
	}
	g.mu.Unlock()

	// Ordine vasi e statistiche per la UI
	sort.Slice(data.Pots, func(i, j int) bool {
		if data.Pots[i].Harvester != data.Pots[j].Harvester {
			return data.Pots[i].Harvester < data.Pots[j].Harvester
		}
		return data.Pots[i].Pot < data.Pots[j].Pot
	})
	data.Stats = g.stats(data.Pots)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)

	g.logger.Printf("gateway: GET /dashboard/data [%dms] cb[readings]=%s cb[health]=%s cb[events]=%s pots=%d phases=%d",
		time.Since(start).Milliseconds(), g.readings.State(), g.health.State(), g.phases.State(),
		len(data.Pots), len(data.Phases))
}

// stats marks the dry pots and summarises the moisture of all of them.
func (g *Gateway) stats(pots []Reading) Stats {
	var st Stats
	if len(pots) == 0 {
		return st
	}
	var sum float64
	st.Min = math.MaxFloat64
	for i := range pots {
		v := float64(pots[i].Moisture)
		sum += v
		st.Min = math.Min(st.Min, v)
		st.Max = math.Max(st.Max, v)
		if pots[i].Moisture < int(g.cfg.DryThreshold) {
			pots[i].Dry = true
			st.Dry++
		}
	}
	st.Mean = math.Round(sum / float64(len(pots))) // intero arrotondato
	return st
}
