package service

import (
	"math"
	"strings"

	"github.com/fieldops/backend/internal/models"
)

// Ranking weights. They must sum to 1 so a technician scoring 100 on every
// component totals exactly 100.
const (
	WeightSkill        = 0.40
	WeightDistance     = 0.30
	WeightUrgency      = 0.15
	WeightAvailability = 0.15
)

const (
	earthRadiusKm = 6371.0

	// Proximity mapping: full score up to FullProximityKm, zero from
	// ZeroProximityKm on. Unknown positions get the neutral default so
	// technicians without a GPS fix are neither excluded nor favored.
	FullProximityKm       = 5.0
	ZeroProximityKm       = 50.0
	NeutralProximityScore = 50.0

	// DefaultShiftMinutes applies when the technician record carries no
	// per-day capacity override.
	DefaultShiftMinutes = 480

	// avgTravelSpeedKmh feeds the advisory travel-time estimate only.
	avgTravelSpeedKmh = 40.0
)

// DistanceKm returns the great-circle distance between two points.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLon := degreesToRadians(lon2 - lon1)

	lat1R := degreesToRadians(lat1)
	lat2R := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1R)*math.Cos(lat2R)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func degreesToRadians(d float64) float64 {
	return d * math.Pi / 180
}

// ProximityScore maps a distance to [0,100]: 100 at or under FullProximityKm,
// linearly down to 0 at ZeroProximityKm.
func ProximityScore(distanceKm float64) float64 {
	if distanceKm <= FullProximityKm {
		return 100
	}
	if distanceKm >= ZeroProximityKm {
		return 0
	}
	return 100 * (ZeroProximityKm - distanceKm) / (ZeroProximityKm - FullProximityKm)
}

// TravelTimeMinutes estimates door-to-door travel for a straight-line
// distance. Advisory only; no road network is modeled.
func TravelTimeMinutes(distanceKm float64) int {
	return int(math.Round(distanceKm / avgTravelSpeedKmh * 60))
}

// SkillScore is the case-insensitive fraction of required skills the
// technician possesses, scaled to [0,100]. An empty requirement list means
// no constraint and every technician scores 100.
func SkillScore(required, possessed []string) float64 {
	if len(required) == 0 {
		return 100
	}
	have := make(map[string]bool, len(possessed))
	for _, s := range possessed {
		have[normalizeSkill(s)] = true
	}
	matched := 0
	seen := make(map[string]bool, len(required))
	total := 0
	for _, s := range required {
		key := normalizeSkill(s)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		total++
		if have[key] {
			matched++
		}
	}
	if total == 0 {
		return 100
	}
	return 100 * float64(matched) / float64(total)
}

func normalizeSkill(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CapacityScore scores remaining slack in a technician's day against a job's
// estimated duration.
func CapacityScore(committedMinutes, capacityMinutes, jobDurationMinutes int) float64 {
	if capacityMinutes <= 0 {
		capacityMinutes = DefaultShiftMinutes
	}
	available := capacityMinutes - committedMinutes
	if available <= 0 {
		return 0
	}
	if jobDurationMinutes <= 0 || available >= jobDurationMinutes {
		return 100
	}
	return 100 * float64(available) / float64(jobDurationMinutes)
}

// UrgencyScore is an additive heuristic over job priority, SLA tier and the
// technician's current operational state, clamped to [0,100].
func UrgencyScore(priority int, slaTier, technicianStatus string) float64 {
	score := 50.0
	switch {
	case priority >= 8:
		score += 30
	case priority >= 5:
		score += 15
	}
	switch slaTier {
	case models.SLACritical:
		score += 20
	case models.SLAHigh:
		score += 10
	}
	switch technicianStatus {
	case models.TechAvailable:
		score += 30
	case models.TechInTransit:
		// finishing soon; partial credit
		score += 15
	}
	return clampScore(score)
}

// WeightedTotal combines the four component scores with the ranking weights.
func WeightedTotal(skill, distance, urgency, availability float64) float64 {
	return WeightSkill*clampScore(skill) +
		WeightDistance*clampScore(distance) +
		WeightUrgency*clampScore(urgency) +
		WeightAvailability*clampScore(availability)
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
