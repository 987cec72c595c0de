// Package sample builds the synthetic "plant" datasets used by the demo
// command, the runnable example and tests.
package sample

import (
	"fmt"
	"math"
	"strconv"

	"github.com/arloliu/h5col/container"
	"github.com/arloliu/h5col/dtype"
	"github.com/arloliu/h5col/endian"
)

// Dataset names written by Write.
const (
	SensorsName = "/plant/sensors"
	EventsName  = "/plant/events"
)

// SensorStride is the record size of SensorType.
const SensorStride = 72

// SensorType describes one sensor reading:
//
//	0  id      uint32
//	4  status  enum<uint8>{OK=0,WARN=1,FAIL=2}
//	5  active  bool
//	8  temp    float64
//	16 pos     [3]float32
//	28 tag     text<ascii,8>
//	40 label   vtext<utf8>
//	56 samples []int16
func SensorType() *dtype.Descriptor {
	status := dtype.Enum(dtype.Uint(1),
		dtype.EnumMember{Name: "OK", Value: 0},
		dtype.EnumMember{Name: "WARN", Value: 1},
		dtype.EnumMember{Name: "FAIL", Value: 2},
	)

	return dtype.Compound(SensorStride,
		dtype.Field{Name: "id", Offset: 0, Type: dtype.Uint(4)},
		dtype.Field{Name: "status", Offset: 4, Type: status},
		dtype.Field{Name: "active", Offset: 5, Type: dtype.Bool()},
		dtype.Field{Name: "temp", Offset: 8, Type: dtype.Float(8)},
		dtype.Field{Name: "pos", Offset: 16, Type: dtype.FixedArray(dtype.Float(4), 3)},
		dtype.Field{Name: "tag", Offset: 28, Type: dtype.FixedText(dtype.ASCII, 8)},
		dtype.Field{Name: "label", Offset: 40, Type: dtype.VarText(dtype.UTF8)},
		dtype.Field{Name: "samples", Offset: 56, Type: dtype.VarArray(dtype.Int(2))},
	)
}

// Temp returns the temperature of sensor i.
func Temp(i int) float64 { return 20 + 0.5*float64(i) }

// Label returns the label of sensor i.
func Label(i int) string { return "sensor-" + strconv.Itoa(i) }

// Tag returns the fixed-width tag of sensor i.
func Tag(i int) string { return fmt.Sprintf("s%04d", i%10000) }

// Samples returns the variable-length sample list of sensor i: i%4 values.
func Samples(i int) []int16 {
	out := make([]int16, i%4)
	for k := range out {
		out[k] = int16(i*10 + k) //nolint: gosec
	}

	return out
}

// Sensors lays out n sensor records in engine byte order and returns the
// record bytes and their heap.
func Sensors(engine endian.EndianEngine, n int) ([]byte, []byte) {
	heap := container.NewHeapBuilder(engine)
	records := make([]byte, n*SensorStride)

	for i := range n {
		rec := records[i*SensorStride : (i+1)*SensorStride]
		engine.PutUint32(rec[0:], uint32(i)) //nolint: gosec
		rec[4] = byte(i % 3)
		if i%2 == 0 {
			rec[5] = 1
		}
		engine.PutUint64(rec[8:], math.Float64bits(Temp(i)))
		for k := range 3 {
			engine.PutUint32(rec[16+4*k:], math.Float32bits(float32(i*(k+1))))
		}
		copy(rec[28:36], Tag(i))
		heap.PutText(rec[40:], Label(i))

		samples := Samples(i)
		payload := make([]byte, 0, 2*len(samples))
		for _, v := range samples {
			payload = engine.AppendUint16(payload, uint16(v)) //nolint: gosec
		}
		heap.PutVar(rec[56:], payload, len(samples))
	}

	return records, heap.Bytes()
}

// Events returns n int64 event timestamps, one second apart.
func Events(engine endian.EndianEngine, n int) []byte {
	out := make([]byte, 0, 8*n)
	for i := range n {
		out = engine.AppendUint64(out, uint64(1_700_000_000_000+int64(i)*1000)) //nolint: gosec
	}

	return out
}

// Write adds the sensors and events datasets, n records each, to w.
func Write(w *container.Writer, n int) error {
	records, heap := Sensors(w.Engine(), n)
	if err := w.Add(SensorsName, SensorType(), records, heap); err != nil {
		return err
	}

	return w.Add(EventsName, dtype.Int(8), Events(w.Engine(), n), nil)
}
