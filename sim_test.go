package rangesensor

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// echoScript is how the simulated module answers a trigger pulse.
type echoScript struct {
	silent bool          // never raise the echo line
	delay  time.Duration // pulse end to echo rising edge
	width  time.Duration // echo high time

	// fall as soon as the driver has read the echo line high, for a
	// zero-length echo
	fallOnRead bool
}

var (
	inRange = echoScript{delay: 200 * time.Microsecond, width: time.Millisecond}
	silent  = echoScript{silent: true}
	stuck   = echoScript{delay: 200 * time.Microsecond, width: 150 * time.Millisecond}

	// ~2.6cm, shorter than a coarse timer tick
	nearby    = echoScript{delay: 200 * time.Microsecond, width: 150 * time.Microsecond}
	zeroWidth = echoScript{delay: 200 * time.Microsecond, fallOnRead: true}
)

// triggerPin records the width of every pulse and notifies the module on
// each falling edge.
type triggerPin struct {
	*gpiotest.Pin
	mu      sync.Mutex
	level   gpio.Level
	rose    time.Time
	widths  []time.Duration
	fail    error
	onPulse func()
}

func (p *triggerPin) Out(l gpio.Level) error {
	now := time.Now()
	p.mu.Lock()
	if p.fail != nil {
		err := p.fail
		p.mu.Unlock()
		return err
	}
	prev := p.level
	p.level = l
	var fire func()
	if prev == gpio.Low && l == gpio.High {
		p.rose = now
	}
	if prev == gpio.High && l == gpio.Low {
		p.widths = append(p.widths, now.Sub(p.rose))
		fire = p.onPulse
	}
	p.mu.Unlock()
	if fire != nil {
		fire()
	}
	return nil
}

func (p *triggerPin) Read() gpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *triggerPin) pulses() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.widths...)
}

func (p *triggerPin) setFail(err error) {
	p.mu.Lock()
	p.fail = err
	p.mu.Unlock()
}

// echoPin is driven by the simulated module. With noEdges set it refuses
// edge detection, like a pin exported without interrupt support.
type echoPin struct {
	*gpiotest.Pin
	high    atomic.Bool
	edges   chan gpio.Level
	seen    chan struct{} // a Read returned High
	noEdges bool
}

func (p *echoPin) In(pull gpio.Pull, edge gpio.Edge) error {
	if edge != gpio.NoEdge && p.noEdges {
		return errors.New("echo: edge detection not supported")
	}
	for {
		select {
		case <-p.edges:
		default:
			return nil
		}
	}
}

func (p *echoPin) Read() gpio.Level {
	l := gpio.Level(p.high.Load())
	if l == gpio.High {
		select {
		case p.seen <- struct{}{}:
		default:
		}
	}
	return l
}

func (p *echoPin) WaitForEdge(timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-p.edges:
		return true
	case <-t.C:
		return false
	}
}

func (p *echoPin) set(l gpio.Level) {
	p.high.Store(bool(l))
	if p.noEdges {
		return
	}
	select {
	case p.edges <- l:
	default:
	}
}

// module simulates an HC-SR04 wired to a trigger and an echo pin.
type module struct {
	trigger *triggerPin
	echo    *echoPin
	mu      sync.Mutex
	script  echoScript
	wg      sync.WaitGroup
}

var pinNumber atomic.Int32

func newModule(script echoScript) *module {
	n := int(pinNumber.Add(2))
	m := &module{
		trigger: &triggerPin{Pin: &gpiotest.Pin{N: "SimTrigger", Num: 1000 + n}},
		echo: &echoPin{
			Pin:   &gpiotest.Pin{N: "SimEcho", Num: 1001 + n},
			edges: make(chan gpio.Level, 4),
			seen:  make(chan struct{}, 1),
		},
		script: script,
	}
	m.trigger.onPulse = m.pulse
	return m
}

func (m *module) setScript(s echoScript) {
	m.mu.Lock()
	m.script = s
	m.mu.Unlock()
}

func (m *module) pulse() {
	m.mu.Lock()
	s := m.script
	m.mu.Unlock()
	if s.silent {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		// simulate the delay of sending the sonic burst
		time.Sleep(s.delay)
		select {
		case <-m.echo.seen:
		default:
		}
		m.echo.set(gpio.High)
		if s.fallOnRead {
			select {
			case <-m.echo.seen:
			case <-time.After(time.Second):
			}
		} else {
			// hold the echo pin high for the time of flight
			time.Sleep(s.width)
		}
		m.echo.set(gpio.Low)
	}()
}

// settle waits for the module to finish every echo in flight.
func (m *module) settle() {
	m.wg.Wait()
}

func (m *module) dev(opts Opts) *Dev {
	return New(m.trigger, m.echo, &opts)
}

// testOpts keeps failure paths fast.
func testOpts() Opts {
	o := DefaultOpts
	o.EchoStartTimeout = 20 * time.Millisecond
	o.EchoEndTimeout = 20 * time.Millisecond
	return o
}
