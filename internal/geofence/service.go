package geofence

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"workforce-backend/internal/geo"
	"workforce-backend/internal/platform/cache"
	"workforce-backend/internal/platform/db"
)

const regionsCacheKey = "geofence:regions:v1"

// ===== インターフェース群 =====

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type IDGen interface {
	New() (string, error)
}

type ulidGen struct{}

func (ulidGen) New() (string, error) {
	t := time.Now().UTC()
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ===== Service本体 =====

type Service struct {
	store RegionStore
	kv    cache.KVStore // nil ならキャッシュしない
	ttl   time.Duration
	clock Clock
	id    IDGen
	log   *zap.Logger
}

func NewService(conn db.DBTX, log *zap.Logger) *Service {
	return &Service{
		store: NewStore(conn),
		clock: realClock{},
		id:    ulidGen{},
		log:   log,
	}
}

// WithCache: 一覧を Redis 等にキャッシュする。作成時に破棄されるが、
// 複数インスタンス構成では最大 ttl の間は古い一覧が返り得る。
func (s *Service) WithCache(kv cache.KVStore, ttl time.Duration) *Service {
	s.kv = kv
	s.ttl = ttl
	return s
}

// POST /office-locations
func (s *Service) Create(ctx context.Context, in CreateRegionRequest) (RegionResponse, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return RegionResponse{}, ErrInvalid("name is required")
	}
	if in.Latitude == nil || in.Longitude == nil {
		return RegionResponse{}, ErrInvalid("latitude and longitude are required")
	}
	center := geo.Coordinate{Latitude: *in.Latitude, Longitude: *in.Longitude}
	if err := center.Validate(); err != nil {
		return RegionResponse{}, ErrInvalid("latitude must be in [-90,90] and longitude in [-180,180]")
	}

	radius := DefaultRadiusMeters
	// 未指定のときだけ既定値。明示の 0 は不正として弾く
	if in.RadiusMeters != nil {
		radius = *in.RadiusMeters
	}
	if !(radius > 0) {
		return RegionResponse{}, ErrInvalid("radius_meters must be > 0")
	}

	id, err := s.id.New()
	if err != nil {
		return RegionResponse{}, ErrInternal("failed to generate id")
	}

	r := Region{
		ID:           id,
		Name:         name,
		Latitude:     center.Latitude,
		Longitude:    center.Longitude,
		RadiusMeters: radius,
		CreatedAt:    s.clock.Now().UTC().Truncate(time.Microsecond),
	}
	if err := s.store.Insert(ctx, r); err != nil {
		var api *APIError
		if errors.As(err, &api) {
			return RegionResponse{}, err
		}
		s.log.Error("insert office location", zap.Error(err))
		return RegionResponse{}, ErrUnavailable("office location store unavailable")
	}

	s.invalidate(ctx)
	s.log.Info("office location created",
		zap.String("id", r.ID),
		zap.String("name", r.Name),
		zap.Float64("radius_meters", r.RadiusMeters),
	)
	return r.toDTO(), nil
}

// List は全リージョンを返す。attendance の分類でも使う。
func (s *Service) List(ctx context.Context) ([]Region, error) {
	if cached, ok := s.fromCache(ctx); ok {
		return cached, nil
	}

	regions, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	s.toCache(ctx, regions)
	return regions, nil
}

// GET /office-locations
func (s *Service) ListResponses(ctx context.Context) ([]RegionResponse, error) {
	regions, err := s.List(ctx)
	if err != nil {
		s.log.Error("list office locations", zap.Error(err))
		return nil, ErrUnavailable("office location store unavailable")
	}
	out := make([]RegionResponse, 0, len(regions))
	for i := range regions {
		out = append(out, regions[i].toDTO())
	}
	return out, nil
}

// ===== cache helpers =====
// キャッシュ障害は一覧取得を失敗させない（DB にフォールバック）

func (s *Service) fromCache(ctx context.Context) ([]Region, bool) {
	if s.kv == nil {
		return nil, false
	}
	raw, err := s.kv.Get(ctx, regionsCacheKey)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("region cache get failed", zap.Error(err))
		}
		return nil, false
	}
	var regions []Region
	if err := json.Unmarshal([]byte(raw), &regions); err != nil {
		s.log.Warn("region cache decode failed", zap.Error(err))
		return nil, false
	}
	return regions, true
}

func (s *Service) toCache(ctx context.Context, regions []Region) {
	if s.kv == nil {
		return
	}
	buf, err := json.Marshal(regions)
	if err != nil {
		return
	}
	if err := s.kv.Set(ctx, regionsCacheKey, string(buf), s.ttl); err != nil {
		s.log.Warn("region cache set failed", zap.Error(err))
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.kv == nil {
		return
	}
	if err := s.kv.Delete(ctx, regionsCacheKey); err != nil {
		s.log.Warn("region cache invalidate failed", zap.Error(err))
	}
}
