// Package lod picks a chunk's level of detail from its distance to the
// camera, with hysteresis so a chunk near a threshold doesn't flicker
// between two LODs frame to frame.
package lod

import "voxelcore/internal/config"

// Controller holds the two distance thresholds (LOD0->1, LOD1->2) and
// the hysteresis band applied around each.
type Controller struct {
	dist0, dist1, hysteresis float32
}

// NewController builds a Controller from engine configuration.
func NewController(cfg config.Config) Controller {
	return Controller{
		dist0:      cfg.LODDist0,
		dist1:      cfg.LODDist1,
		hysteresis: cfg.LODHysteresis,
	}
}

// Calculate returns the LOD a chunk at dist (distance to the camera)
// should use, given its currentLOD. Promotion to a coarser LOD
// requires clearing threshold+hysteresis; demotion to a finer LOD
// requires falling below threshold-hysteresis. A chunk sitting inside
// the hysteresis band keeps its current LOD.
func (c Controller) Calculate(dist float32, currentLOD int) int {
	switch currentLOD {
	case 0:
		if dist > c.dist0+c.hysteresis {
			if dist > c.dist1+c.hysteresis {
				return 2
			}
			return 1
		}
		return 0
	case 1:
		if dist > c.dist1+c.hysteresis {
			return 2
		}
		if dist < c.dist0-c.hysteresis {
			return 0
		}
		return 1
	case 2:
		if dist < c.dist1-c.hysteresis {
			if dist < c.dist0-c.hysteresis {
				return 0
			}
			return 1
		}
		return 2
	default:
		// Unknown starting LOD: settle directly from absolute distance,
		// ignoring hysteresis, then let the next call apply it normally.
		switch {
		case dist > c.dist1:
			return 2
		case dist > c.dist0:
			return 1
		default:
			return 0
		}
	}
}
