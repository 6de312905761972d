package search

import "go.uber.org/zap"

// Service tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili  *Meili
	pgfts  *PgFTS
	logger *zap.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch
// is not configured.
func NewService(meili *Meili, pgfts *PgFTS, logger *zap.Logger) *Service {
	return &Service{meili: meili, pgfts: pgfts, logger: logger}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn("search: meilisearch error, falling back to pgfts", zap.Error(err))
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		s.logger.Error("search: pgfts error", zap.Error(err))
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexReport pushes a report into the Meilisearch index,
// fire-and-forget. Called after report creation and after a status
// change; Postgres FTS needs no indexing step.
func (s *Service) IndexReport(record ReportRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexReport(record); err != nil {
			s.logger.Warn("search: index report", zap.String("id", record.ID), zap.Error(err))
		}
	}()
}

// DeleteReport removes a report from the search index (fire-and-forget).
func (s *Service) DeleteReport(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteReport(id); err != nil {
			s.logger.Warn("search: delete report", zap.String("id", id), zap.Error(err))
		}
	}()
}

func nonNil(results []Result) []Result {
	if results == nil {
		return []Result{}
	}
	return results
}
