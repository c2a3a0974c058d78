package cached

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/frontandrew/attestation/internal/pkg/logger"
	"github.com/frontandrew/attestation/internal/repository"
	"github.com/google/uuid"
	redisv9 "github.com/redis/go-redis/v9"
)

const (
	certificateCachePrefix = "certificate:"
	certificateCacheTTL    = 1 * time.Hour
)

// Cache - подмножество методов redis.Client, которое нужно декоратору
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// CertificateRepository добавляет кэширование чтения аттестата по ID.
// Используется публичной проверкой аттестата; остальные методы проходят насквозь.
type CertificateRepository struct {
	repository.CertificateRepository
	cache  Cache
	ttl    time.Duration
	logger logger.Logger
}

// NewCertificateRepository создает новый кэшируемый certificate repository
func NewCertificateRepository(repo repository.CertificateRepository, cache Cache, log logger.Logger) *CertificateRepository {
	return &CertificateRepository{
		CertificateRepository: repo,
		cache:                 cache,
		ttl:                   certificateCacheTTL,
		logger:                log,
	}
}

func certificateKey(id uuid.UUID) string {
	return certificateCachePrefix + id.String()
}

// GetByID возвращает аттестат по ID (с кэшированием)
func (r *CertificateRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Certificate, error) {
	key := certificateKey(id)

	// 1. Проверяем кэш
	cached, err := r.cache.Get(ctx, key)
	if err == nil {
		var cert domain.Certificate
		if jsonErr := json.Unmarshal([]byte(cached), &cert); jsonErr == nil {
			return &cert, nil
		}
		// Битая запись - перечитываем из БД
		_ = r.cache.Del(ctx, key)
	} else if !errors.Is(err, redisv9.Nil) {
		// Кэш недоступен - работаем с БД
		r.logger.Warn("Certificate cache read failed", map[string]interface{}{
			"certificate_id": id.String(),
			"error":          err.Error(),
		})
	}

	// 2. Cache miss - идем в БД
	cert, err := r.CertificateRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// 3. Сохраняем результат в кэш (ошибка записи не критична)
	if payload, err := json.Marshal(cert); err == nil {
		_ = r.cache.Set(ctx, key, payload, r.ttl)
	}

	return cert, nil
}

// Update обновляет аттестат и инвалидирует кэш
func (r *CertificateRepository) Update(ctx context.Context, cert *domain.Certificate) error {
	if err := r.CertificateRepository.Update(ctx, cert); err != nil {
		return err
	}
	r.Invalidate(ctx, cert.ID)
	return nil
}

// Delete удаляет аттестат и инвалидирует кэш
func (r *CertificateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.CertificateRepository.Delete(ctx, id); err != nil {
		return err
	}
	r.Invalidate(ctx, id)
	return nil
}

// Invalidate сбрасывает кэш аттестатов; вызывается после коммита транзакций,
// которые меняли аттестаты мимо декоратора
func (r *CertificateRepository) Invalidate(ctx context.Context, ids ...uuid.UUID) {
	if len(ids) == 0 {
		return
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = certificateKey(id)
	}

	if err := r.cache.Del(ctx, keys...); err != nil {
		r.logger.Warn("Certificate cache invalidation failed", map[string]interface{}{
			"keys":  keys,
			"error": err.Error(),
		})
	}
}
