package protocol

import (
	"encoding/binary"
	"hash/crc32"
	"math"
)

// CalibrationSize is the encoded length of CalibrationSettings.
const CalibrationSize = 88

// Board revisions reported in calibration settings.
const (
	BoardTypeRev1 uint8 = 1
	BoardTypeRev2 uint8 = 2
)

// CalibrationSettings is the sensor calibration record reported by the vehicle
// after its ad-hoc calibration.
type CalibrationSettings struct {
	GyroOffset         [3]float32
	AccelCalib         [3]float32
	MagnetSoft         [9]float32
	MagnetHard         [3]float32
	AltimeterSetting   float32
	TemperatureSetting float32
	BoardType          uint8
	CRC                uint32
}

func (CalibrationSettings) DataType() Command {
	return CmdCalibrationSettingsData
}

// IsValid recomputes the checksum and field checks from the current values.
func (c CalibrationSettings) IsValid() bool {
	if c.BoardType != BoardTypeRev1 && c.BoardType != BoardTypeRev2 {
		return false
	}
	for _, v := range c.floats() {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return crc32.ChecksumIEEE(c.body()) == c.CRC
}

// Seal returns a copy of c with CRC computed over the current fields.
func (c CalibrationSettings) Seal() CalibrationSettings {
	c.CRC = crc32.ChecksumIEEE(c.body())
	return c
}

// Bytes is the little-endian wire encoding, CRC last.
func (c CalibrationSettings) Bytes() []byte {
	buf := c.body()
	return binary.LittleEndian.AppendUint32(buf, c.CRC)
}

// DecodeCalibration parses the wire encoding. It does not judge validity.
func DecodeCalibration(b []byte) (CalibrationSettings, error) {
	if len(b) != CalibrationSize {
		return CalibrationSettings{}, ErrInvalidLength
	}
	var c CalibrationSettings
	vals := make([]float32, 20)
	for i := range vals {
		vals[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	copy(c.GyroOffset[:], vals[0:3])
	copy(c.AccelCalib[:], vals[3:6])
	copy(c.MagnetSoft[:], vals[6:15])
	copy(c.MagnetHard[:], vals[15:18])
	c.AltimeterSetting = vals[18]
	c.TemperatureSetting = vals[19]
	c.BoardType = b[80]
	c.CRC = binary.LittleEndian.Uint32(b[84:88])
	return c, nil
}

func (c CalibrationSettings) floats() []float32 {
	out := make([]float32, 0, 20)
	out = append(out, c.GyroOffset[:]...)
	out = append(out, c.AccelCalib[:]...)
	out = append(out, c.MagnetSoft[:]...)
	out = append(out, c.MagnetHard[:]...)
	return append(out, c.AltimeterSetting, c.TemperatureSetting)
}

// body encodes everything but the CRC: 20 floats, board type, 3 reserved bytes.
func (c CalibrationSettings) body() []byte {
	buf := make([]byte, 0, CalibrationSize)
	for _, v := range c.floats() {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return append(buf, c.BoardType, 0, 0, 0)
}
