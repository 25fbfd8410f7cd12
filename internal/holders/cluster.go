package holders

import (
	"fmt"
	"sort"

	"github.com/yourorg/vetting-worker/internal/model"
)

// Cluster is a set of holders that share a funding source. Membership is
// recomputed on every run and carries no identity beyond it.
type Cluster struct {
	FundingSource string   `json:"funding_source"`
	Members       []string `json:"members"`
}

type clusterValue struct {
	Sampled              int       `json:"sampled"`
	Analyzed             int       `json:"analyzed"`
	Clustered            int       `json:"clustered"`
	ConnectionPercentage float64   `json:"connection_percentage"`
	Clusters             []Cluster `json:"clusters,omitempty"`
}

// fundingClusters groups holders by identical funding source. Groups of one
// are not clusters. Holders whose source is unknown are left out of the
// denominator, and fewer than two resolved holders cannot form a cluster, so
// that case is undecidable.
func fundingClusters(traces []Trace, threshold float64) (model.CheckEntry, []Cluster) {
	groups := map[string][]string{}
	v := clusterValue{Sampled: len(traces)}
	for _, t := range traces {
		if t.FundingSource == "" {
			continue
		}
		v.Analyzed++
		groups[t.FundingSource] = append(groups[t.FundingSource], t.Holder.Address)
	}

	if v.Analyzed < 2 {
		return model.CheckEntry{
			Outcome: model.Undecidable,
			Value:   v,
			Details: fmt.Sprintf("Funding source resolved for %d of %d sampled holders, at least 2 are needed", v.Analyzed, v.Sampled),
		}, nil
	}

	for src, members := range groups {
		if len(members) < 2 {
			continue
		}
		v.Clusters = append(v.Clusters, Cluster{FundingSource: src, Members: members})
		v.Clustered += len(members)
	}
	sort.Slice(v.Clusters, func(i, j int) bool {
		if len(v.Clusters[i].Members) != len(v.Clusters[j].Members) {
			return len(v.Clusters[i].Members) > len(v.Clusters[j].Members)
		}
		return v.Clusters[i].FundingSource < v.Clusters[j].FundingSource
	})

	ratio := float64(v.Clustered) / float64(v.Analyzed)
	v.ConnectionPercentage = percent(ratio)

	details := fmt.Sprintf("No shared funding source among %d analyzed holders", v.Analyzed)
	if len(v.Clusters) > 0 {
		noun := "clusters link"
		if len(v.Clusters) == 1 {
			noun = "cluster links"
		}
		details = fmt.Sprintf("%d funding %s %d of %d analyzed holders (%.0f%%)",
			len(v.Clusters), noun, v.Clustered, v.Analyzed, v.ConnectionPercentage)
	}
	return model.CheckEntry{
		Outcome: model.PassIf(ratio < threshold),
		Value:   v,
		Details: details,
	}, v.Clusters
}
