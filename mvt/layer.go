package mvt

// Layer is one decoded Tile.Layer.
type Layer struct {
	Name     string
	Version  uint32
	Extent   uint32
	Features []Feature
}

// defaultExtent is the extent assumed when a layer omits the field,
// per the MVT schema's documented default.
const defaultExtent = 4096

// Layer message field numbers.
const (
	layerFieldName     = 1
	layerFieldFeatures = 2
	layerFieldKeys     = 3
	layerFieldValues   = 4
	layerFieldExtent   = 5
	layerFieldVersion  = 15
)

// Tile message field numbers.
const tileFieldLayers = 3
