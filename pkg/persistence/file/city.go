package file

import (
	"context"
	"fmt"
	"sort"

	"github.com/platewatch/platewatch/pkg/models"
	"github.com/platewatch/platewatch/pkg/persistence"
)

const citiesCollection = "cities"

// CityRepository handles city-related file operations.
type CityRepository struct {
	root string
}

func NewCityRepository(root string) *CityRepository {
	return &CityRepository{root: root}
}

func (cr *CityRepository) GetByID(_ context.Context, cityID string) (*models.City, error) {
	var city models.City

	found, err := readDocument(cr.root, citiesCollection, cityID, &city)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, fmt.Errorf("city %s: %w", cityID, persistence.ErrCityNotFound)
	}

	return &city, nil
}

func (cr *CityRepository) List(_ context.Context) ([]*models.City, error) {
	ids, err := listDocumentIDs(cr.root, citiesCollection)
	if err != nil {
		return nil, err
	}

	cities := make([]*models.City, 0, len(ids))

	for _, id := range ids {
		var city models.City

		found, err := readDocument(cr.root, citiesCollection, id, &city)
		if err != nil {
			return nil, fmt.Errorf("failed to load city %s: %w", id, err)
		}

		if found {
			cities = append(cities, &city)
		}
	}

	sort.Slice(cities, func(i, j int) bool {
		return cities[i].Name < cities[j].Name
	})

	return cities, nil
}

func (cr *CityRepository) Save(_ context.Context, city *models.City) error {
	return writeDocument(cr.root, citiesCollection, city.ID, city)
}
