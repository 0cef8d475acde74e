package session

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/nao1215/a11yscan/internal/cluster"
	"github.com/nao1215/a11yscan/internal/crawler"
	"github.com/nao1215/a11yscan/internal/events"
	"github.com/nao1215/a11yscan/internal/model"
	"github.com/nao1215/a11yscan/internal/selector"
)

// errNoPages fails a discovery that found nothing.
var errNoPages = errors.New("discovery found no pages")

// runDiscovery crawls, classifies and clusters pages, then selects the
// sample. Pages already on the record (after a restart) are kept and not
// fetched again.
func (e *Engine) runDiscovery(ctx context.Context, h *handle) {
	// Records are written even after the worker is cancelled.
	persist := context.WithoutCancel(ctx)
	s := h.m.Snapshot()
	id, dc := s.ID, s.Discovery
	logger := e.logger.With("session_id", id)

	clusterer := cluster.New(
		cluster.WithThreshold(dc.SimilarityThreshold),
		cluster.WithLogger(logger),
	)
	known := make([]string, 0, len(s.Pages))
	for _, p := range s.Pages {
		clusterer.Add(p.URL, p.ContentSignature)
		known = append(known, p.URL)
	}

	spider := crawler.NewSpider(e.client,
		crawler.WithMaxDepth(dc.MaxDepth),
		crawler.WithMaxPages(dc.MaxPages),
		crawler.WithParallelism(dc.Parallelism),
		crawler.WithTimeoutPerPage(dc.TimeoutPerPage),
		crawler.WithBudget(dc.Budget),
		crawler.WithDelay(dc.CrawlDelay),
		crawler.WithRespectRobots(dc.RespectRobots),
		crawler.WithExcludePatterns(dc.ExcludePatterns),
		crawler.WithAllowedDomains(dc.AllowedDomains),
		crawler.WithSpiderUserAgent(e.cfg.UserAgent),
		crawler.WithSpiderMaxBodySize(e.cfg.MaxBodySize),
		crawler.WithHeaders(e.cfg.Headers),
		crawler.WithCookie(e.cfg.Cookie),
		crawler.WithKnownPages(known),
		crawler.WithSpiderLogger(logger),
		crawler.WithOnPage(func(p *model.DiscoveredPage, count int) {
			e.classifier.Apply(p)
			p.TemplateGroupID, _ = clusterer.Add(p.URL, p.ContentSignature)
			page := p.Clone()
			percent := percentOf(count, dc.MaxPages)
			err := h.m.Update(persist, func(s *model.Session) {
				s.Pages = append(s.Pages, page)
				s.ProgressPercent = percent
			})
			if err != nil {
				return
			}
			e.bus.Publish(id, events.DiscoveryProgress{
				PagesDiscovered: count,
				ProgressPercent: percent,
				CurrentURL:      page.URL,
			})
		}),
		crawler.WithOnWarning(func(msg string) {
			_ = h.m.Update(persist, func(s *model.Session) { //nolint:errcheck // terminal sessions drop warnings
				s.Warnings = append(s.Warnings, msg)
			})
		}),
	)

	res, err := spider.Crawl(ctx, dc.SeedURL)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		_ = h.m.Fail(persist, fmt.Errorf("discovery failed: %w", err)) //nolint:errcheck // recorded on the session
		return
	}
	logger.Info("crawl finished", "pages", res.Count, "reason", res.Reason)

	s = h.m.Snapshot()
	if len(s.Pages) == 0 {
		_ = h.m.Fail(persist, errNoPages) //nolint:errcheck // recorded on the session
		return
	}

	pages, groups := s.Pages, clusterer.Groups()
	if dc.Recluster {
		groups = cluster.Recluster(pages,
			cluster.WithThreshold(dc.SimilarityThreshold),
			cluster.WithLogger(logger),
		)
		logger.Info("template groups rebuilt", "groups", len(groups))
	}
	sel, selErr := selector.Select(pages, groups, selectorOptions(dc))
	err = h.m.Update(persist, func(s *model.Session) {
		s.Pages = pages
		s.DiscoveryResult = &model.DiscoveryResult{Groups: groups, Selection: sel}
		if sel != nil {
			s.Pages = selector.Apply(s.Pages, sel)
		}
		if selErr != nil {
			s.Warnings = append(s.Warnings, fmt.Sprintf("page selection failed: %v", selErr))
		}
		s.ProgressPercent = 100
	})
	if err != nil {
		return
	}
	if err := h.m.Transition(persist, model.StatusCompleted, ""); err != nil {
		return
	}
	e.bus.Publish(id, events.DiscoveryComplete{
		PagesDiscovered:   len(s.Pages),
		TemplatesDetected: len(groups),
	})
}

// percentOf returns done/total in percent with one decimal.
func percentOf(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	p := math.Min(float64(done)/float64(total)*100, 100)
	return math.Round(p*10) / 10
}
