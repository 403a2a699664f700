//go:build rangesensor_spin

package rangesensor

func defaultEmitter() Emitter {
	return &SpinEmitter{}
}
