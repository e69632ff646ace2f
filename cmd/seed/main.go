package main

import (
	"context"

	"go-marketplace/internal/config"
	"go-marketplace/internal/database"
	"go-marketplace/internal/features/automation"
	"go-marketplace/internal/features/business"
	"go-marketplace/internal/features/sync"
	"go-marketplace/internal/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Seed inserts a demo business with a sync configuration and one
// automation rule, for local development.
func Seed(
	lc fx.Lifecycle,
	businessRepo business.BusinessRepository,
	configRepo sync.ConfigRepository,
	automationRepo automation.AutomationRepository,
	logger *zap.Logger,
	shutdowner fx.Shutdowner,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer func() {
					if err := shutdowner.Shutdown(); err != nil {
						logger.Error("Failed to shutdown", zap.Error(err))
					}
				}()

				logger.Info("Seeding demo data...")

				fixedID, _ := primitive.ObjectIDFromHex("678e9a1b2c3d4e5f6a7b8c9e")
				biz := &business.Business{
					ID:          fixedID,
					Name:        "Ace Bakery",
					Category:    "Bakery",
					Phone:       "+1 555 010 2030",
					Website:     "https://acebakery.example.com",
					Description: "Neighborhood bakery with fresh sourdough every morning.",
					Address: business.Address{
						Street:  "12 Baker Street",
						City:    "Springfield",
						State:   "IL",
						Zip:     "62701",
						Country: "US",
					},
					Hours: map[string]business.DayHours{
						"monday":  {Open: "07:00", Close: "18:00"},
						"tuesday": {Open: "07:00", Close: "18:00"},
						"sunday":  {Closed: true},
					},
					Listing: business.ListingConnection{
						Connected:   true,
						LocationRef: "locations/demo-ace-bakery",
					},
				}
				if _, err := businessRepo.Get(ctx, fixedID.Hex()); err == nil {
					logger.Info("Demo business exists, skipping")
				} else if err := businessRepo.Create(ctx, biz); err != nil {
					logger.Error("Failed to seed business", zap.Error(err))
					return
				}

				cfg := sync.DefaultConfiguration(fixedID.Hex())
				cfg.AutoSync = true
				cfg.SyncIntervalMinutes = 60
				if err := configRepo.Upsert(ctx, cfg); err != nil {
					logger.Error("Failed to seed sync configuration", zap.Error(err))
					return
				}

				rule := &automation.AutomationRule{
					BusinessID: fixedID.Hex(),
					Name:       "Log completed syncs",
					EventType:  "sync.completed",
					Active:     true,
					Actions: []automation.RuleAction{
						{
							Type: automation.ActionRunScript,
							Config: map[string]interface{}{
								"script": `total := event.data.stats.items_processed`,
							},
						},
					},
				}
				if err := automationRepo.Create(ctx, rule); err != nil {
					logger.Error("Failed to seed automation rule", zap.Error(err))
					return
				}

				logger.Info("Seeding complete",
					zap.String("business_id", fixedID.Hex()))
			}()
			return nil
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			database.NewDatabase,

			business.NewBusinessRepository,
			sync.NewConfigRepository,
			automation.NewAutomationRepository,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(Seed),
	)

	app.Run()
}
