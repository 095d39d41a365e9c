/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package outline merges a glyph's shapes into one outline and turns outline
// path data back into drawing primitives.
package outline

import (
	"seehuhn.de/go/geom/vec"

	"epitax/internal/clip"
	"epitax/internal/domain"
)

// Unioner is the boolean union capability the merger depends on.
type Unioner interface {
	Union(a, b clip.Region) clip.Region
	Serialize(r clip.Region) string
}

// Default is the union engine used when callers have no preference.
var Default Unioner = clip.Overlay{}

// ShapePolygon converts a shape to a font-space polygon: Y is flipped about
// the baseline so it grows upwards.
func ShapePolygon(s domain.Shape, baselineY float64) clip.Polygon {
	poly := make(clip.Polygon, len(s.Vertices))
	for i, p := range s.Vertices {
		poly[i] = vec.Vec2{X: p.X(), Y: baselineY - p.Y()}
	}
	return poly
}

// MergeRegion unions the shapes in order, starting from the first one.
func MergeRegion(shapes []domain.Shape, baselineY float64, u Unioner) clip.Region {
	var region clip.Region
	for _, s := range shapes {
		region = u.Union(region, clip.Region{ShapePolygon(s, baselineY)})
	}
	return region
}

// Merge returns the path data of the union of all shapes, or "" for none.
func Merge(shapes []domain.Shape, baselineY float64, u Unioner) string {
	if len(shapes) == 0 {
		return ""
	}
	return u.Serialize(MergeRegion(shapes, baselineY, u))
}
