package engine

import "time"

// RetentionConfig carries the runtime-tunable retention and migration knobs.
type RetentionConfig struct {
	// HotTTL is how long a record stays hot before promotion to the warm tier.
	HotTTL time.Duration
	// WarmTTL is how long an unsynced warm record ages before cold upload.
	WarmTTL time.Duration
	// WarmRetention is how long a synced warm record is kept before deletion.
	WarmRetention time.Duration
	// HotMaxItems caps the hot tier record count; oldest evicted first.
	HotMaxItems int
	// HotMaxBytes caps the hot tier byte footprint; 0 disables the byte budget.
	HotMaxBytes int64
	// CleanupBatchSize bounds warm-tier deletes per batch.
	CleanupBatchSize int
	// MigrationInterval is the cycle period. Changing it restarts the timer.
	MigrationInterval time.Duration
}

// Options configures an Engine.
type Options struct {
	Retention RetentionConfig

	// SyncBatchSize caps records per cold batch upload.
	SyncBatchSize int
	// Compression gzips cold uploads when the backend supports it.
	Compression bool
	// QueueKeepLimit is how many newest fallback queue entries survive a
	// capacity-exhausted truncation.
	QueueKeepLimit int
	// MaxDeliveryAttempts drops a queue item after this many failed
	// deliveries. 0 means retry forever: losing a write is considered worse
	// than retrying one indefinitely.
	MaxDeliveryAttempts int
	// BreakerCooldown is the local-write skip window after capacity exhaustion.
	BreakerCooldown time.Duration
	// SkipLogInterval rate-limits the skipped-write summary log.
	SkipLogInterval time.Duration
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		Retention: RetentionConfig{
			HotTTL:            1 * time.Hour,
			WarmTTL:           24 * time.Hour,
			WarmRetention:     7 * 24 * time.Hour,
			HotMaxItems:       500,
			HotMaxBytes:       0,
			CleanupBatchSize:  50,
			MigrationInterval: 15 * time.Minute,
		},
		SyncBatchSize:       50,
		QueueKeepLimit:      20,
		MaxDeliveryAttempts: 0,
		BreakerCooldown:     5 * time.Minute,
		SkipLogInterval:     1 * time.Minute,
	}
}

// fillDefaults replaces zero values with defaults so a partially specified
// Options is usable.
func fillDefaults(o Options) Options {
	d := DefaultOptions()
	if o.Retention.HotTTL <= 0 {
		o.Retention.HotTTL = d.Retention.HotTTL
	}
	if o.Retention.WarmTTL <= 0 {
		o.Retention.WarmTTL = d.Retention.WarmTTL
	}
	if o.Retention.WarmRetention <= 0 {
		o.Retention.WarmRetention = d.Retention.WarmRetention
	}
	if o.Retention.HotMaxItems <= 0 {
		o.Retention.HotMaxItems = d.Retention.HotMaxItems
	}
	if o.Retention.CleanupBatchSize <= 0 {
		o.Retention.CleanupBatchSize = d.Retention.CleanupBatchSize
	}
	if o.Retention.MigrationInterval <= 0 {
		o.Retention.MigrationInterval = d.Retention.MigrationInterval
	}
	if o.SyncBatchSize <= 0 {
		o.SyncBatchSize = d.SyncBatchSize
	}
	if o.QueueKeepLimit <= 0 {
		o.QueueKeepLimit = d.QueueKeepLimit
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = d.BreakerCooldown
	}
	if o.SkipLogInterval <= 0 {
		o.SkipLogInterval = d.SkipLogInterval
	}
	return o
}
