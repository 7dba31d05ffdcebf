package pmi

import "sort"

// Counter maintains article-level co-occurrence counts between two
// vocabularies, regions on one side and risk clusters on the other.
type Counter struct {
	N   int64            // total number of articles
	Nx  map[string]int64 // articles mentioning each region
	Ny  map[string]int64 // articles mentioning each cluster
	Nxy map[Pair]int64   // articles mentioning both
}

// Pair is one (region, cluster) cell.
type Pair struct {
	Region  string
	Cluster string
}

// NewCounter creates a new co-occurrence counter
func NewCounter() *Counter {
	return &Counter{
		Nx:  make(map[string]int64),
		Ny:  make(map[string]int64),
		Nxy: make(map[Pair]int64),
	}
}

// AddArticle updates counts for one article. Both slices must hold unique
// values; an article with neither still counts toward N.
func (c *Counter) AddArticle(regions, clusters []string) {
	c.N++
	for _, r := range regions {
		c.Nx[r]++
	}
	for _, k := range clusters {
		c.Ny[k]++
	}
	for _, r := range regions {
		for _, k := range clusters {
			c.Nxy[Pair{Region: r, Cluster: k}]++
		}
	}
}

// Merge adds the counts of other.
func (c *Counter) Merge(other *Counter) {
	c.N += other.N
	for k, v := range other.Nx {
		c.Nx[k] += v
	}
	for k, v := range other.Ny {
		c.Ny[k] += v
	}
	for k, v := range other.Nxy {
		c.Nxy[k] += v
	}
}

// PairCount returns the co-occurrence count of a region and a cluster.
func (c *Counter) PairCount(region, cluster string) int64 {
	return c.Nxy[Pair{Region: region, Cluster: cluster}]
}

// Pairs returns every co-occurring pair sorted by region then cluster.
func (c *Counter) Pairs() []Pair {
	out := make([]Pair, 0, len(c.Nxy))
	for p := range c.Nxy {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Region != out[j].Region {
			return out[i].Region < out[j].Region
		}
		return out[i].Cluster < out[j].Cluster
	})
	return out
}
