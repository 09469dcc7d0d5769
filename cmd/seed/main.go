package main

import (
	"context"
	"log"
	"os"
	"time"

	"feature-flags-be/internal/entity"
	"feature-flags-be/internal/repository/specification"
	"feature-flags-be/internal/repository/unitofwork"
	"feature-flags-be/internal/service"
	"feature-flags-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func main() {
	// Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn, false)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	ctx := context.Background()
	orgId := getEnv("SEED_ORGANIZATION", "org_demo")
	uow := unitofwork.NewRepositoryFactory(db).NewUnitOfWork(ctx)

	log.Printf("Seeding organization %s...", orgId)

	existing, err := uow.OrganizationRepository().FindByID(ctx, orgId)
	if err != nil {
		log.Fatalf("Error: Failed to load organization: %v", err)
	}
	if existing == nil {
		if err := uow.OrganizationRepository().Create(ctx, &entity.Organization{
			Id:           orgId,
			Name:         "Demo",
			Environments: entity.DefaultEnvironments,
		}); err != nil {
			log.Fatalf("Error: Failed to create organization: %v", err)
		}
	}

	for _, env := range entity.DefaultEnvironments {
		key := "key_" + env.Id + "_" + uuid.NewString()[:8]
		if err := uow.OrganizationRepository().CreateApiKey(ctx, &entity.ApiKey{
			Key:          key,
			Organization: orgId,
			Environment:  env.Id,
			Description:  "Seeded " + env.Id + " key",
		}); err != nil {
			log.Printf("Error creating API key for %s: %v", env.Id, err)
			continue
		}
		log.Printf("Created API key for %s: %s", env.Id, key)
	}

	now := time.Now().UTC()
	features := []*entity.Feature{
		{
			Id:           "dark-mode",
			DefaultValue: "false",
			ValueType:    entity.ValueTypeBoolean,
			Description:  "Dark theme for the web app",
			EnvironmentSettings: map[string]entity.EnvironmentSettings{
				"dev": {Enabled: true, Rules: []entity.Rule{
					{Type: entity.RuleTypeForce, Value: "true", Enabled: true, Description: "Always on locally"},
				}},
				"production": {Enabled: true, Rules: []entity.Rule{
					{Type: entity.RuleTypeRollout, Value: "true", Coverage: floatPtr(0.1), HashAttribute: "id", Enabled: true},
				}},
			},
		},
		{
			Id:           "checkout-button-color",
			DefaultValue: "blue",
			ValueType:    entity.ValueTypeString,
			Project:      "web",
			EnvironmentSettings: map[string]entity.EnvironmentSettings{
				"dev": {Enabled: true, Rules: []entity.Rule{}},
				"production": {Enabled: true, Rules: []entity.Rule{
					{
						Type:        entity.RuleTypeExperiment,
						TrackingKey: "checkout-color",
						Enabled:     true,
						Values:      []entity.ExperimentValue{{Value: "blue", Weight: 0.5}, {Value: "green", Weight: 0.5}},
					},
				}},
			},
		},
	}

	for _, f := range features {
		found, err := uow.FeatureRepository().FindOne(ctx,
			specification.ByOrganization{OrganizationID: orgId},
			specification.ByID{ID: f.Id},
		)
		if err != nil {
			log.Fatalf("Error: Failed to look up feature %s: %v", f.Id, err)
		}
		if found != nil {
			log.Printf("Feature '%s' already exists, skipping...", f.Id)
			continue
		}

		f.Organization = orgId
		f.DateCreated, f.DateUpdated = now, now
		service.AddIdsToRules(f.EnvironmentSettings)
		if err := uow.FeatureRepository().Create(ctx, f); err != nil {
			log.Printf("Error creating feature '%s': %v", f.Id, err)
		} else {
			log.Printf("Created feature: %s", f.Id)
		}
	}

	exp, err := uow.ExperimentRepository().FindByTrackingKey(ctx, orgId, "checkout-color")
	if err != nil {
		log.Fatalf("Error: Failed to look up experiment: %v", err)
	}
	if exp == nil {
		if err := uow.ExperimentRepository().Create(ctx, &entity.Experiment{
			Id:           "exp_" + uuid.NewString()[:8],
			Organization: orgId,
			TrackingKey:  "checkout-color",
			Name:         "Checkout button color",
			Status:       "running",
			Variations: []entity.ExperimentVariation{
				{Id: "v0", Name: "Control", Key: "0", Weight: 0.5},
				{Id: "v1", Name: "Green", Key: "1", Weight: 0.5},
			},
		}); err != nil {
			log.Printf("Error creating experiment: %v", err)
		}
	}

	if endpoint := os.Getenv("SEED_WEBHOOK_URL"); endpoint != "" {
		if err := uow.WebhookRepository().Create(ctx, &entity.Webhook{
			Organization: orgId,
			Name:         "Seeded webhook",
			Endpoint:     endpoint,
			SigningKey:   "whsec_" + uuid.NewString(),
		}); err != nil {
			log.Printf("Error creating webhook: %v", err)
		} else {
			log.Printf("Created webhook for %s", endpoint)
		}
	}

	log.Println("Seeding completed!")
}

func floatPtr(f float64) *float64 {
	return &f
}
