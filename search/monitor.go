package search

import (
	"iter"

	"github.com/poiesic/recollect/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterVectorSearch(ids []core.ID)
	AfterKeywordScan(iter.Seq[core.ID])
	HybridHit(doc *core.Document)
	VectorHit(doc *core.Document)
	KeywordHit(doc *core.Document)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                   {}
func (n *noopMonitor) AfterVectorSearch(_ []core.ID)    {}
func (n *noopMonitor) AfterKeywordScan(_ iter.Seq[core.ID]) {}
func (n *noopMonitor) HybridHit(_ *core.Document)       {}
func (n *noopMonitor) VectorHit(_ *core.Document)       {}
func (n *noopMonitor) KeywordHit(_ *core.Document)      {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)    {}
