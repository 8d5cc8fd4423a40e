package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/audit_backend/config"
	"github.com/mmdatafocus/audit_backend/models"
	"github.com/mmdatafocus/audit_backend/utils"
	"github.com/sirupsen/logrus"
)

const analysisLockTTL = 2 * time.Minute

var ErrClientIdRequired = errors.New("client id is required")

// AnalysisCache stores finished analyses per client and data version.
type AnalysisCache interface {
	Get(ctx context.Context, key string, dest *models.AggregatedAnalysis) (bool, error)
	Set(ctx context.Context, key string, value *models.AggregatedAnalysis, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type redisAnalysisCache struct{}

func (redisAnalysisCache) Get(ctx context.Context, key string, dest *models.AggregatedAnalysis) (bool, error) {
	return config.GetRedisObject(ctx, key, dest)
}

func (redisAnalysisCache) Set(ctx context.Context, key string, value *models.AggregatedAnalysis, ttl time.Duration) error {
	return config.SetRedisObject(ctx, key, value, ttl)
}

func (redisAnalysisCache) Delete(ctx context.Context, keys ...string) error {
	return config.RemoveRedisKey(ctx, keys...)
}

// EventPublisher returns the broker message id.
type EventPublisher func(ctx context.Context, evt config.AnalysisEvent) (string, error)

type lockFunc func(ctx context.Context, clientId string, scope string, ttl time.Duration, moduleName string, functionName string) (func(), error)

type Service struct {
	analyzer        *Analyzer
	transactions    models.TransactionSource
	classifications models.ClassificationSource
	loc             *time.Location
	cache           AnalysisCache
	cacheTTL        time.Duration
	publish         EventPublisher
	lock            lockFunc
	logger          *logrus.Logger
}

type ServiceOption func(*Service)

// WithCache overrides the Redis cache; nil disables caching.
func WithCache(cache AnalysisCache, ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.cache = cache
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithEventPublisher overrides the Pub/Sub publisher; nil disables events.
func WithEventPublisher(p EventPublisher) ServiceOption {
	return func(s *Service) { s.publish = p }
}

func WithLock(l lockFunc) ServiceOption {
	return func(s *Service) { s.lock = l }
}

func WithServiceLocation(loc *time.Location) ServiceOption {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewService wires the analyzer to its collaborators. Cache and events follow the
// ENABLE_ANALYSIS_CACHE and ENABLE_ANALYSIS_EVENTS flags unless overridden.
func NewService(analyzer *Analyzer, transactions models.TransactionSource, classifications models.ClassificationSource, opts ...ServiceOption) *Service {
	s := &Service{
		analyzer:        analyzer,
		transactions:    transactions,
		classifications: classifications,
		loc:             config.EngineLocation(),
		cacheTTL:        config.AnalysisCacheTTL(),
		lock:            utils.ClientLock,
		logger:          analyzer.logger,
	}
	if config.AnalysisCacheEnabled() {
		s.cache = redisAnalysisCache{}
	}
	if config.AnalysisEventsEnabled() {
		s.publish = config.PublishAnalysisEvent
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func analysisCacheKey(clientId, dataVersion string) string {
	if dataVersion == "" {
		dataVersion = "all"
	}
	return fmt.Sprintf("audit:analysis:%s:%s", clientId, dataVersion)
}

// RunClientAnalysis fetches a client's population and analyzes it. The per-client lock
// is best-effort: only a lock held by another run aborts the call.
func (s *Service) RunClientAnalysis(ctx context.Context, clientId string, dataVersion string) (*models.AggregatedAnalysis, error) {
	clientId = strings.TrimSpace(clientId)
	if clientId == "" {
		return nil, ErrClientIdRequired
	}
	ctx = utils.SetClientIdInContext(ctx, clientId)
	ctx = utils.SetDataVersionInContext(ctx, dataVersion)
	ctx, correlationId := utils.EnsureCorrelationId(ctx)
	ref := models.PopulationRef{ClientId: clientId, DataVersion: dataVersion}
	key := analysisCacheKey(clientId, dataVersion)

	if s.cache != nil {
		var cached models.AggregatedAnalysis
		ok, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			config.LogError(s.logger, "Workflow", "RunClientAnalysis", "analysis cache read", key, err)
		} else if ok {
			return &cached, nil
		}
	}

	release, err := s.lock(ctx, clientId, "analysis:"+dataVersion, analysisLockTTL, "Workflow", "RunClientAnalysis")
	if errors.Is(err, utils.ErrorAnalysisLocked) {
		return nil, err
	}
	if err != nil {
		s.logger.WithFields(logrus.Fields{"client_id": clientId, "error": err.Error()}).Warn("analysis lock unavailable, continuing")
	}
	defer release()

	rows, err := s.transactions.GetTransactions(ctx, clientId, dataVersion)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	areas, err := s.classifications.GetAccountAreas(ctx, clientId)
	if err != nil {
		return nil, fmt.Errorf("load account classifications: %w", err)
	}
	txns, rejected := models.ToTransactions(rows, s.loc)

	result := s.analyzer.AnalyzePopulation(ctx, ref, txns, areas)
	s.analyzer.AttachRejectedRows(result, rejected)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
			config.LogError(s.logger, "Workflow", "RunClientAnalysis", "analysis cache write", key, err)
		}
	}
	if s.publish != nil {
		if _, err := s.publish(ctx, completionEvent(result, correlationId)); err != nil {
			config.LogError(s.logger, "Workflow", "RunClientAnalysis", "publish analysis event", ref, err)
		}
	}
	return result, nil
}

// InvalidateAnalysis drops cached analyses after a client's ledger data changed.
// The all-versions entry is always dropped as well.
func (s *Service) InvalidateAnalysis(ctx context.Context, clientId string, dataVersion string) error {
	clientId = strings.TrimSpace(clientId)
	if clientId == "" {
		return ErrClientIdRequired
	}
	if s.cache == nil {
		return nil
	}
	keys := []string{analysisCacheKey(clientId, "")}
	if dataVersion != "" {
		keys = append(keys, analysisCacheKey(clientId, dataVersion))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		config.LogError(s.logger, "Workflow", "InvalidateAnalysis", "analysis cache delete", keys, err)
		return err
	}
	return nil
}

func completionEvent(a *models.AggregatedAnalysis, correlationId string) config.AnalysisEvent {
	return config.AnalysisEvent{
		RunId:                a.RunId,
		ClientId:             a.Population.ClientId,
		DataVersion:          a.Population.DataVersion,
		Action:               config.AnalysisCompletedAction,
		GeneratedAt:          a.GeneratedAt,
		TransactionCount:     a.Statistics.TransactionCount,
		FailedControlTests:   failedControlTests(a.ControlTests),
		HighRiskTransactions: len(a.RiskScoring.HighRiskTransactions),
		CorrelationId:        correlationId,
	}
}
