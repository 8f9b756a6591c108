package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/latency-sim/internal/logging"
	"github.com/signalsfoundry/latency-sim/model"
)

// internal JSON shapes, decoupled from the model types.
type scenarioJSON struct {
	Name            string     `json:"name"`
	PacketSizeBytes int        `json:"packet_size_bytes"`
	Epoch           string     `json:"epoch"` // RFC 3339; used for TLE propagation
	Nodes           []nodeJSON `json:"nodes"`
	Hops            []hopJSON  `json:"hops"`
}

type nodeJSON struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type hopJSON struct {
	BandwidthBps        float64  `json:"bandwidth_bps"`
	DistanceM           float64  `json:"distance_m"`
	Medium              string   `json:"medium"`
	PropagationSpeedMps float64  `json:"propagation_speed_mps"`
	ProcessingDelayMs   *float64 `json:"processing_delay_ms"`
	QueuingDelayMs      *float64 `json:"queuing_delay_ms"`
	Utilization         *float64 `json:"utilization"`
	DeviceTier          string   `json:"device_tier"`
	CurrentLoad         float64  `json:"current_load"`

	// Satellite geometry: when present, the hop's distance is derived
	// from a TLE propagated at the scenario epoch instead of distance_m.
	Satellite *satelliteJSON `json:"satellite"`
}

type satelliteJSON struct {
	TLE1 string `json:"tle1"`
	TLE2 string `json:"tle2"`
	// GroundECEFM is the hop's ground endpoint in ECEF metres.
	GroundECEFM positionJSON `json:"ground_ecef_m"`
}

type positionJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// LoadScenario reads a JSON path descriptor from r and returns the
// validated Path. It fails on JSON errors and on structural problems
// (wrapping model.ErrInvalidPath); numeric oddities are left for the
// delay model to clamp, so deliberately pathological teaching scenarios
// still load.
func LoadScenario(r io.Reader, log logging.Logger) (*model.Path, error) {
	if log == nil {
		log = logging.Noop()
	}

	var payload scenarioJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadScenario: decode failed: %w", err)
	}

	epoch := time.Now().UTC()
	if payload.Epoch != "" {
		parsed, err := time.Parse(time.RFC3339, payload.Epoch)
		if err != nil {
			return nil, fmt.Errorf("LoadScenario: bad epoch %q: %w", payload.Epoch, err)
		}
		epoch = parsed.UTC()
	}

	path := &model.Path{
		Name:            payload.Name,
		PacketSizeBytes: payload.PacketSizeBytes,
		Nodes:           make([]model.Node, 0, len(payload.Nodes)),
		Hops:            make([]model.Hop, 0, len(payload.Hops)),
	}

	for i, n := range payload.Nodes {
		if n.Name == "" {
			return nil, fmt.Errorf("LoadScenario: node %d has no name", i)
		}
		path.Nodes = append(path.Nodes, model.Node{
			Name: n.Name,
			Type: model.NodeType(n.Type),
		})
	}

	for i, h := range payload.Hops {
		hop := model.Hop{
			BandwidthBps:        h.BandwidthBps,
			DistanceM:           h.DistanceM,
			Medium:              model.MediumType(h.Medium),
			PropagationSpeedMps: h.PropagationSpeedMps,
			Utilization:         h.Utilization,
			DeviceTier:          model.DeviceTier(h.DeviceTier),
			CurrentLoad:         h.CurrentLoad,
		}
		if h.ProcessingDelayMs != nil {
			hop.Processing = model.ExplicitMs(*h.ProcessingDelayMs)
		}
		if h.QueuingDelayMs != nil {
			hop.Queuing = model.ExplicitMs(*h.QueuingDelayMs)
		}
		if h.Satellite != nil {
			if err := resolveSatelliteHop(&hop, h.Satellite, epoch, i, log); err != nil {
				return nil, err
			}
		}
		path.Hops = append(path.Hops, hop)
	}

	if err := path.Validate(); err != nil {
		return nil, fmt.Errorf("LoadScenario: %w", err)
	}
	return path, nil
}

// resolveSatelliteHop propagates the hop's TLE with SGP4 at the
// scenario epoch and replaces the hop's distance with the true slant
// range from the ground endpoint. Because the geometry is exact, the
// hop is reclassified onto the wireless medium: the satellite medium's
// bent-pipe altitude padding would double-count the distance already
// measured here.
func resolveSatelliteHop(hop *model.Hop, sat *satelliteJSON, epoch time.Time, hopIndex int, log logging.Logger) error {
	if sat.TLE1 == "" || sat.TLE2 == "" {
		return fmt.Errorf("LoadScenario: hop %d satellite block needs both TLE lines", hopIndex)
	}

	sgp4 := satellite.TLEToSat(sat.TLE1, sat.TLE2, satellite.GravityWGS72)

	year, month, day := epoch.Date()
	hour, minute, sec := epoch.Clock()
	posECI, _ := satellite.Propagate(sgp4, year, int(month), day, hour, minute, sec)
	jd := satellite.JDay(year, int(month), day, hour, minute, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)

	const mToKm = 1e-3
	ground := Vec3{
		X: sat.GroundECEFM.X * mToKm,
		Y: sat.GroundECEFM.Y * mToKm,
		Z: sat.GroundECEFM.Z * mToKm,
	}
	satPos := Vec3{X: posECEF.X, Y: posECEF.Y, Z: posECEF.Z}

	if !hasLineOfSight(ground, satPos) {
		log.Warn(context.Background(), "satellite hop has no line of sight at epoch",
			logging.Int("hop", hopIndex),
			logging.Any("elevation_deg", ElevationDegrees(ground, satPos)),
		)
	}

	slantKm := ground.DistanceTo(satPos)
	hop.DistanceM = slantKm * 1000
	hop.Medium = model.MediumWireless
	return nil
}
