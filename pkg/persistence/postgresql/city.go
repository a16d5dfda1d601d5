package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/platewatch/platewatch/pkg/models"
	"github.com/platewatch/platewatch/pkg/persistence"
)

// CityRepository handles city-related database operations.
type CityRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCityRepository creates a new city repository.
func NewCityRepository(db *sql.DB, logger *slog.Logger) *CityRepository {
	return &CityRepository{db: db, logger: logger}
}

func (r *CityRepository) GetByID(ctx context.Context, id string) (*models.City, error) {
	city, err := scanCity(r.db.QueryRowContext(ctx, "SELECT id, name, domains FROM cities WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("city %s: %w", id, persistence.ErrCityNotFound)
		}

		return nil, fmt.Errorf("failed to scan city: %w", err)
	}

	return city, nil
}

func (r *CityRepository) List(ctx context.Context) ([]*models.City, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, domains FROM cities ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query cities: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	cities := make([]*models.City, 0)

	for rows.Next() {
		city, err := scanCity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan city: %w", err)
		}

		cities = append(cities, city)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating cities: %w", err)
	}

	return cities, nil
}

func (r *CityRepository) Save(ctx context.Context, city *models.City) error {
	domainsJSON, err := json.Marshal(city.Domains)
	if err != nil {
		return fmt.Errorf("failed to marshal city domains: %w", err)
	}

	query := `
		INSERT INTO cities (id, name, domains)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			domains = EXCLUDED.domains
	`

	_, err = r.db.ExecContext(ctx, query, city.ID, city.Name, domainsJSON)
	if err != nil {
		return fmt.Errorf("failed to save city %s: %w", city.ID, err)
	}

	return nil
}

func scanCity(row interface{ Scan(...any) error }) (*models.City, error) {
	var (
		city        models.City
		domainsJSON []byte
	)

	err := row.Scan(&city.ID, &city.Name, &domainsJSON)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(domainsJSON, &city.Domains); err != nil {
		return nil, fmt.Errorf("failed to unmarshal city domains: %w", err)
	}

	return &city, nil
}
