// Package catalog holds the static registry of surf spots and their cams.
// The registry is loaded once from configuration and supplies identifiers to
// every pipeline stage.
package catalog

import (
	"github.com/surfwatch/surfwatch-go/internal/conf"
	"github.com/surfwatch/surfwatch-go/internal/errors"
)

// Spot is a named real-world surf location tracked by the system.
type Spot struct {
	ID             string
	Name           string
	ProviderSpotID string
	Latitude       float64
	Longitude      float64
}

// Cam is a specific camera associated with a Spot.
type Cam struct {
	ID            string
	SpotID        string
	ProviderCamID string
	Label         string
	PageSlug      string
}

// Catalog is an immutable spot/cam registry.
type Catalog struct {
	spots      []Spot
	cams       []Cam
	spotByID   map[string]Spot
	camsBySpot map[string][]Cam
}

// New builds a Catalog from the configured spot list. The config layer already
// rejects duplicate ids, this validates cross references.
func New(spots []conf.SpotConfig) (*Catalog, error) {
	c := &Catalog{
		spotByID:   make(map[string]Spot, len(spots)),
		camsBySpot: make(map[string][]Cam, len(spots)),
	}

	for i := range spots {
		sc := &spots[i]
		spot := Spot{
			ID:             sc.ID,
			Name:           sc.Name,
			ProviderSpotID: sc.ProviderSpotID,
			Latitude:       sc.Latitude,
			Longitude:      sc.Longitude,
		}
		if spot.ProviderSpotID == "" {
			return nil, errors.Newf("spot %q has no provider spot id", spot.ID).
				Component("catalog").
				Category(errors.CategoryConfiguration).
				Build()
		}
		c.spots = append(c.spots, spot)
		c.spotByID[spot.ID] = spot

		for j := range sc.Cams {
			cc := &sc.Cams[j]
			cam := Cam{
				ID:            cc.ID,
				SpotID:        spot.ID,
				ProviderCamID: cc.ProviderCamID,
				Label:         cc.Label,
				PageSlug:      cc.PageSlug,
			}
			c.cams = append(c.cams, cam)
			c.camsBySpot[spot.ID] = append(c.camsBySpot[spot.ID], cam)
		}
	}

	return c, nil
}

// Spots returns all spots in catalog order.
func (c *Catalog) Spots() []Spot {
	return c.spots
}

// Cams returns all cams across all spots in catalog order.
func (c *Catalog) Cams() []Cam {
	return c.cams
}

// SpotByID looks up a spot by its identifier.
func (c *Catalog) SpotByID(id string) (Spot, bool) {
	spot, ok := c.spotByID[id]
	return spot, ok
}

// CamsForSpot returns the cams of one spot, which may be empty.
func (c *Catalog) CamsForSpot(spotID string) []Cam {
	return c.camsBySpot[spotID]
}

// SpotForCam resolves the owning spot of a cam.
func (c *Catalog) SpotForCam(cam *Cam) (Spot, bool) {
	return c.SpotByID(cam.SpotID)
}
