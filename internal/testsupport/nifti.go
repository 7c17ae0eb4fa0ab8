package testsupport

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"os"
	"strings"
	"testing"
)

// nifti1Header mirrors the fixed 348-byte NIfTI-1 header layout.
type nifti1Header struct {
	SizeofHdr      int32
	DataTypeUnused [10]byte
	DBName         [18]byte
	Extents        int32
	SessionError   int16
	Regular        byte
	DimInfo        byte
	Dim            [8]int16
	IntentP1       float32
	IntentP2       float32
	IntentP3       float32
	IntentCode     int16
	Datatype       int16
	Bitpix         int16
	SliceStart     int16
	Pixdim         [8]float32
	VoxOffset      float32
	SclSlope       float32
	SclInter       float32
	SliceEnd       int16
	SliceCode      byte
	XyztUnits      byte
	CalMax         float32
	CalMin         float32
	SliceDuration  float32
	Toffset        float32
	Glmax          int32
	Glmin          int32
	Descrip        [80]byte
	AuxFile        [24]byte
	QformCode      int16
	SformCode      int16
	QuaternB       float32
	QuaternC       float32
	QuaternD       float32
	QoffsetX       float32
	QoffsetY       float32
	QoffsetZ       float32
	SrowX          [4]float32
	SrowY          [4]float32
	SrowZ          [4]float32
	IntentName     [16]byte
	Magic          [4]byte
}

// WriteNifti writes a single-timepoint uint8 .nii volume with the given
// dimensions and voxel sizes. Values are indexed [x + y*nx + z*nx*ny].
func WriteNifti(t testing.TB, path string, nx, ny, nz int, pixdim [3]float32, values []uint8) {
	t.Helper()
	if len(values) != nx*ny*nz {
		t.Fatalf("WriteNifti: %d values for %dx%dx%d grid", len(values), nx, ny, nz)
	}

	hdr := nifti1Header{
		SizeofHdr: 348,
		Datatype:  2, // DT_UINT8
		Bitpix:    8,
		VoxOffset: 352,
		SclSlope:  1,
		Magic:     [4]byte{'n', '+', '1', 0},
	}
	hdr.Dim = [8]int16{3, int16(nx), int16(ny), int16(nz), 1, 1, 1, 1}
	hdr.Pixdim = [8]float32{1, pixdim[0], pixdim[1], pixdim[2], 1, 1, 1, 1}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &hdr); err != nil {
		t.Fatalf("WriteNifti: encode header: %v", err)
	}
	// Four-byte extension indicator follows the header before voxel data.
	buf.Write([]byte{0, 0, 0, 0})
	buf.Write(values)

	data := buf.Bytes()
	if strings.HasSuffix(path, ".gz") {
		var gz bytes.Buffer
		w := gzip.NewWriter(&gz)
		if _, err := w.Write(data); err != nil {
			t.Fatalf("WriteNifti: compress: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("WriteNifti: compress: %v", err)
		}
		data = gz.Bytes()
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteNifti: %v", err)
	}
}
