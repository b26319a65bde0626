// Package voxel defines the packed on-CPU voxel representation and the
// packed GPU vertex it meshes into.
package voxel

// Data is a 32-bit packed voxel.
//
// Bit layout (LSB -> MSB):
//
//	[11: 0]  palette index — 12 bits, up to 4096 block types
//	[19:12]  health        —  8 bits
//	[23:20]  ao            —  4 bits, 16 AO levels
//	[31:24]  flags         —  8 bits, see Flags
type Data uint32

// Flags are the per-voxel property bits packed into Data's top byte.
type Flags uint8

const (
	FlagNone        Flags = 0
	FlagSolid       Flags = 1 << 0
	FlagTransparent Flags = 1 << 1
	FlagEmissive    Flags = 1 << 2
	FlagLiquid      Flags = 1 << 3
	FlagFoliage     Flags = 1 << 4
)

// Air is the zero value: palette 0, no flags.
const Air Data = 0

// Make packs a voxel from its components.
func Make(paletteIndex uint16, health, ao uint8, flags Flags) Data {
	var r uint32
	r |= uint32(paletteIndex) & 0xFFF
	r |= uint32(health) << 12
	r |= (uint32(ao) & 0xF) << 20
	r |= uint32(flags) << 24
	return Data(r)
}

func (d Data) PaletteIndex() uint16 { return uint16(d & 0xFFF) }
func (d Data) Health() uint8        { return uint8((d >> 12) & 0xFF) }
func (d Data) AO() uint8            { return uint8((d >> 20) & 0xF) }
func (d Data) Flags() Flags         { return Flags((d >> 24) & 0xFF) }

func (d Data) WithPaletteIndex(idx uint16) Data {
	return Data(uint32(d)&^0xFFF | uint32(idx)&0xFFF)
}

func (d Data) WithHealth(h uint8) Data {
	return Data(uint32(d)&^(0xFF<<12) | uint32(h)<<12)
}

func (d Data) WithAO(ao uint8) Data {
	return Data(uint32(d)&^(0xF<<20) | (uint32(ao)&0xF)<<20)
}

func (d Data) WithFlags(f Flags) Data {
	return Data(uint32(d)&^(0xFF<<24) | uint32(f)<<24)
}

func (d Data) IsSolid() bool       { return d.Flags()&FlagSolid != 0 }
func (d Data) IsTransparent() bool { return d.Flags()&FlagTransparent != 0 }
func (d Data) IsEmissive() bool    { return d.Flags()&FlagEmissive != 0 }
func (d Data) IsAir() bool         { return d == Air }

// Vertex is the 8-byte packed vertex the mesher emits and the GPU
// consumes as two R8G8B8A8_UINT attributes (offset 0 and offset 4).
type Vertex struct {
	X, Y, Z  uint8
	FaceID   uint8
	AO       uint8
	Reserved uint8
	Palette  uint16
}

// Face IDs, matching the normal table below.
const (
	FacePosX uint8 = iota
	FaceNegX
	FacePosY
	FaceNegY
	FacePosZ
	FaceNegZ
)

// FaceNormals holds the outward normal per face ID.
var FaceNormals = [6][3]int8{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// FaceNeighbour is the offset to the neighbour a face looks into; the
// world storage uses it to resolve a chunk's six neighbouring chunks.
var FaceNeighbour = FaceNormals
