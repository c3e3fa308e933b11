package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	platformdomain "github.com/smallbiznis/hookrelay/internal/platform/domain"
	"gorm.io/gorm"
)

var defaultPlatforms = []platformdomain.Platform{
	{
		Name:            "github",
		DisplayName:     "GitHub",
		SignatureHeader: "X-Hub-Signature-256",
		EventHeader:     "X-GitHub-Event",
		DocsURL:         "https://docs.github.com/en/webhooks",
	},
	{
		Name:            "razorpay",
		DisplayName:     "Razorpay",
		SignatureHeader: "X-Razorpay-Signature",
		DocsURL:         "https://razorpay.com/docs/webhooks",
	},
	{
		Name:            "stripe",
		DisplayName:     "Stripe",
		SignatureHeader: "Stripe-Signature",
		DocsURL:         "https://stripe.com/docs/webhooks",
	},
	{
		Name:            "shopify",
		DisplayName:     "Shopify",
		SignatureHeader: "X-Shopify-Hmac-Sha256",
		EventHeader:     "X-Shopify-Topic",
		DocsURL:         "https://shopify.dev/docs/apps/webhooks",
	},
}

// EnsurePlatforms seeds the built-in platform rows for startup bootstrap.
// Existing rows are left untouched, so operator edits survive restarts.
func EnsurePlatforms(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, platform := range defaultPlatforms {
			if err := ensurePlatformTx(ctx, tx, node, platform); err != nil {
				return err
			}
		}
		return nil
	})
}

func ensurePlatformTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, platform platformdomain.Platform) error {
	var existing platformdomain.Platform
	err := tx.WithContext(ctx).Where("name = ?", platform.Name).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	platform.ID = node.Generate()
	platform.IsActive = true
	platform.CreatedAt = now
	platform.UpdatedAt = now

	return tx.WithContext(ctx).Create(&platform).Error
}
