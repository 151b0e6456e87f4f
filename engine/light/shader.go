package light

import (
	_ "embed"
	"strconv"
	"strings"
	"text/template"
)

//go:embed assets/shadow_depth.wgsl
var shadowDepthSource string

//go:embed assets/cascade_shadow.wgsl.tmpl
var cascadeShadowTemplate string

var cascadeShadow = template.Must(template.New("cascade_shadow").Parse(cascadeShadowTemplate))

type cascadeBinding struct {
	Index   int
	Binding int
}

type cascadeShadowData struct {
	Group      uint32
	Resolution uint32
	MaxSlope   string
	Cascades   []cascadeBinding
}

// ShadowShaderSource renders the WGSL that samples the cascades from the lighting pass. The output
// declares the lighting bind group at group and defines shadow_visibility(distance, world_pos, n_dot_l),
// which mirrors CascadeVisibility, ComparisonBias and PCF. GPUDirectionalLightSource must precede it.
//
// Parameters:
//   - group: the bind group index of the lighting bind group
//   - cascades: the cascade count
//   - resolution: the shadow map resolution in texels
//
// Returns:
//   - string: the WGSL source
//   - error: a template execution error
func ShadowShaderSource(group uint32, cascades int, resolution uint32) (string, error) {
	data := cascadeShadowData{
		Group:      group,
		Resolution: resolution,
		MaxSlope:   strconv.FormatFloat(float64(DefaultMaxSlopeBiasScale), 'f', 1, 32),
	}
	for i := range cascades {
		data.Cascades = append(data.Cascades, cascadeBinding{Index: i, Binding: BindingFirstCascade + i})
	}
	var sb strings.Builder
	if err := cascadeShadow.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
