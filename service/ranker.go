package service

import (
	"sort"

	"github.com/douggil74/elite-recovery-app-sub004/models"
)

// sortMergedAddresses orders addresses by probability, then source
// count, then most recent date, then normalized form. The final
// lexical key makes the order total, so equal-score entities never
// reorder between runs.
func sortMergedAddresses(merged []models.MergedAddress) {
	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.Probability != b.Probability {
			return a.Probability > b.Probability
		}
		if len(a.Sources) != len(b.Sources) {
			return len(a.Sources) > len(b.Sources)
		}
		if a.LastSeen != b.LastSeen {
			return a.LastSeen > b.LastSeen
		}
		return a.Normalized < b.Normalized
	})
}

func sortMergedVehicles(merged []models.MergedVehicle) {
	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.Probability != b.Probability {
			return a.Probability > b.Probability
		}
		if len(a.Sources) != len(b.Sources) {
			return len(a.Sources) > len(b.Sources)
		}
		return a.Canonical < b.Canonical
	})
}

// rankResult caps the sorted lists to the top N and assembles the
// final result. Inputs must already be sorted.
func rankResult(addresses []models.MergedAddress, vehicles []models.MergedVehicle, patterns []models.Pattern, questions []models.Question, n int) models.RankedResult {
	if len(addresses) > n {
		addresses = addresses[:n]
	}
	if len(vehicles) > n {
		vehicles = vehicles[:n]
	}
	return models.RankedResult{
		Addresses: addresses,
		Vehicles:  vehicles,
		Patterns:  patterns,
		Questions: questions,
	}
}
