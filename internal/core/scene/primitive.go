package scene

import (
	"github.com/globekit/globekit/internal/core/geo"
)

// Primitive is the visual payload handed to the scene provider. It is a
// closed set of feature kinds rather than a free-form property bag; a nil
// feature means the entity does not carry it. Extra is forwarded to the
// provider without interpretation.
type Primitive struct {
	ID       string          `json:"id" yaml:"id"`
	Position geo.Vec3        `json:"position" yaml:"position"`
	ZIndex   int             `json:"z_index,omitempty" yaml:"z_index,omitempty"`
	Show     bool            `json:"show" yaml:"show"`
	Icon     *IconFeature    `json:"icon,omitempty" yaml:"icon,omitempty"`
	Label    *LabelFeature   `json:"label,omitempty" yaml:"label,omitempty"`
	Path     *PathFeature    `json:"path,omitempty" yaml:"path,omitempty"`
	Polygon  *PolygonFeature `json:"polygon,omitempty" yaml:"polygon,omitempty"`
	Model    *ModelFeature   `json:"model,omitempty" yaml:"model,omitempty"`
	Extra    map[string]any  `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Clone deep-copies the primitive so queued scene operations stay stable
// while the source entity keeps mutating.
func (p Primitive) Clone() Primitive {
	out := p
	if p.Icon != nil {
		icon := *p.Icon
		out.Icon = &icon
	}
	if p.Label != nil {
		label := *p.Label
		out.Label = &label
	}
	if p.Path != nil {
		path := *p.Path
		path.Positions = append([]geo.Vec3(nil), p.Path.Positions...)
		out.Path = &path
	}
	if p.Polygon != nil {
		poly := *p.Polygon
		poly.Positions = append([]geo.Vec3(nil), p.Polygon.Positions...)
		out.Polygon = &poly
	}
	if p.Model != nil {
		model := *p.Model
		out.Model = &model
	}
	if p.Extra != nil {
		extra := make(map[string]any, len(p.Extra))
		for k, v := range p.Extra {
			extra[k] = v
		}
		out.Extra = extra
	}
	return out
}

type IconFeature struct {
	Image  string  `json:"image" yaml:"image"`
	Scale  float64 `json:"scale,omitempty" yaml:"scale,omitempty"`
	Color  string  `json:"color,omitempty" yaml:"color,omitempty"`
	Shadow bool    `json:"shadow,omitempty" yaml:"shadow,omitempty"`
}

type LabelFeature struct {
	Text         string  `json:"text" yaml:"text"`
	Font         string  `json:"font,omitempty" yaml:"font,omitempty"`
	Color        string  `json:"color,omitempty" yaml:"color,omitempty"`
	PixelOffsetY float64 `json:"pixel_offset_y,omitempty" yaml:"pixel_offset_y,omitempty"`
}

type PathFeature struct {
	Positions []geo.Vec3 `json:"positions" yaml:"positions"`
	Width     float64    `json:"width,omitempty" yaml:"width,omitempty"`
	Color     string     `json:"color,omitempty" yaml:"color,omitempty"`
}

type PolygonFeature struct {
	Positions    []geo.Vec3 `json:"positions" yaml:"positions"`
	FillColor    string     `json:"fill_color,omitempty" yaml:"fill_color,omitempty"`
	OutlineColor string     `json:"outline_color,omitempty" yaml:"outline_color,omitempty"`
}

type ModelFeature struct {
	URI              string  `json:"uri" yaml:"uri"`
	Scale            float64 `json:"scale,omitempty" yaml:"scale,omitempty"`
	MinimumPixelSize float64 `json:"minimum_pixel_size,omitempty" yaml:"minimum_pixel_size,omitempty"`
}
