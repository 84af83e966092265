// Package transform runs a user-supplied JavaScript function over every
// sensor reading before it is stored or published.
//
// The script must define
//
//	function transform(record) { ... }
//
// which returns the (possibly modified) record, or null to drop it.
package transform

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/luki/lhmsensors/internal/config"
	"github.com/luki/lhmsensors/internal/sensor"
)

// ErrNoTransform is returned when the script does not define transform.
var ErrNoTransform = errors.New("transform: script defines no transform function")

// Transformer wraps one goja runtime. A runtime is not safe for concurrent
// use, so calls are serialized.
type Transformer struct {
	vm        *goja.Runtime
	transform goja.Callable
	log       *logrus.Entry
	mu        sync.Mutex
}

// Load builds a transformer from cfg. It returns nil, nil when no script is
// configured. Inline code wins over a script path.
func Load(cfg config.TransformConfig, log *logrus.Entry) (*Transformer, error) {
	switch {
	case cfg.ScriptCode != "":
		return New(cfg.ScriptCode, log)
	case cfg.ScriptPath != "":
		code, err := os.ReadFile(cfg.ScriptPath)
		if err != nil {
			return nil, errors.Wrapf(err, "load script %s", cfg.ScriptPath)
		}
		return New(string(code), log.WithField("script", cfg.ScriptPath))
	default:
		return nil, nil
	}
}

// New compiles code and looks up its transform function.
func New(code string, log *logrus.Entry) (*Transformer, error) {
	vm := goja.New()
	t := &Transformer{vm: vm, log: log}

	_ = vm.Set("log", func(msg string) {
		log.Infof("[JS] %s", msg)
	})
	_ = vm.Set("parseNumber", func(s string) interface{} {
		v, err := sensor.ParseNumber(s)
		if err != nil {
			return nil
		}
		return v
	})
	_ = vm.Set("convertTemperature", convertTemperature)
	_ = vm.Set("validateRange", func(value, min, max float64) bool {
		return value >= min && value <= max
	})

	if _, err := vm.RunString(code); err != nil {
		return nil, errors.Wrap(err, "run script")
	}

	fn, ok := goja.AssertFunction(vm.Get("transform"))
	if !ok {
		return nil, ErrNoTransform
	}
	t.transform = fn
	return t, nil
}

// Record applies the script to one reading. keep is false when the script
// returned null or undefined.
func (t *Transformer) Record(r sensor.SensorData) (out sensor.SensorData, keep bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	result, err := t.transform(goja.Undefined(), t.vm.ToValue(toObject(r)))
	if err != nil {
		return r, true, errors.Wrapf(err, "transform %s", r.SensorID)
	}
	if goja.IsNull(result) || goja.IsUndefined(result) {
		return sensor.SensorData{}, false, nil
	}

	obj, ok := result.Export().(map[string]interface{})
	if !ok {
		return r, true, errors.Errorf("transform %s: returned %T, want object or null", r.SensorID, result.Export())
	}
	return fromObject(obj, r), true, nil
}

// Apply runs the script over every reading of data and returns a new
// snapshot. A reading whose transform fails is kept unchanged; the first such
// error is returned alongside the result.
func (t *Transformer) Apply(data *sensor.Data) (*sensor.Data, error) {
	out := &sensor.Data{
		Sensors:     make(map[string]sensor.SensorData, len(data.Sensors)),
		MainDevices: make(map[string]string, len(data.MainDevices)),
	}

	var firstErr error
	failed := 0
	for _, id := range data.SensorIDs() {
		r, keep, err := t.Record(data.Sensors[id])
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
		if !keep {
			continue
		}
		out.Sensors[r.SensorID] = r
		if r.DeviceID != "" {
			out.MainDevices[r.DeviceID] = r.DeviceName
		}
	}

	if firstErr != nil {
		return out, errors.Wrapf(firstErr, "%d of %d records failed", failed, len(data.Sensors))
	}
	return out, nil
}

func toObject(r sensor.SensorData) map[string]interface{} {
	obj := map[string]interface{}{
		"sensor_id":   r.SensorID,
		"name":        r.Name,
		"type":        r.Type,
		"value":       r.Value,
		"min":         r.Min,
		"max":         r.Max,
		"unit":        nil,
		"device_name": r.DeviceName,
		"device_type": r.DeviceType,
		"device_id":   r.DeviceID,
		"number":      nil,
	}
	if r.Unit != nil {
		obj["unit"] = *r.Unit
	}
	if v, ok := r.Number(); ok {
		obj["number"] = v
	}
	return obj
}

// fromObject reads a script result back, falling back to orig for fields
// the script removed.
func fromObject(obj map[string]interface{}, orig sensor.SensorData) sensor.SensorData {
	r := orig
	str := func(key string, dst *string) {
		if v, ok := obj[key]; ok && v != nil {
			*dst = stringify(v)
		}
	}
	str("sensor_id", &r.SensorID)
	str("name", &r.Name)
	str("type", &r.Type)
	str("value", &r.Value)
	str("min", &r.Min)
	str("max", &r.Max)
	str("device_name", &r.DeviceName)
	str("device_type", &r.DeviceType)
	str("device_id", &r.DeviceID)

	if v, ok := obj["unit"]; ok {
		if v == nil {
			r.Unit = nil
		} else {
			unit := stringify(v)
			r.Unit = &unit
		}
	}
	return r
}

func stringify(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

func convertTemperature(value float64, fromUnit, toUnit string) float64 {
	var celsius float64
	switch strings.ToUpper(strings.TrimPrefix(fromUnit, "°")) {
	case "C":
		celsius = value
	case "F":
		celsius = (value - 32) * 5 / 9
	case "K":
		celsius = value - 273.15
	default:
		return value
	}

	switch strings.ToUpper(strings.TrimPrefix(toUnit, "°")) {
	case "F":
		return celsius*9/5 + 32
	case "K":
		return celsius + 273.15
	default:
		return celsius
	}
}
