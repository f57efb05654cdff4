package interp_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/stepdag/internal/expr"
	"github.com/san-kum/stepdag/internal/fn"
	"github.com/san-kum/stepdag/internal/interp"
	"github.com/san-kum/stepdag/internal/ir"
)

// buildCode assembles a two-phase program through the builder.
func buildCode(body func(init, step *ir.Builder)) *ir.Code {
	prog, builders := ir.NewCodeBuilder(ir.PhaseInitialization, ir.PhaseStep)
	body(builders[0], builders[1])
	return &ir.Code{
		Program: prog,
		Phases:  []*ir.Phase{builders[0].Phase(), builders[1].Phase()},
	}
}

// advanceCode is the minimal well-formed method: accumulate dt into the
// state and advance time.
func advanceCode() *ir.Code {
	return buildCode(func(init, step *ir.Builder) {
		step.Assign("next", expr.MustParse("`<state>y` + `<dt>`"))
		step.Fence()
		step.Assign("<state>y", expr.V("next"))
		step.Assign("<t>", expr.MustParse("`<t>` + `<dt>`"))
	})
}

func newInterpreter(code *ir.Code) *interp.Interpreter {
	ip, err := interp.New(code, fn.NewRegistry())
	Expect(err).NotTo(HaveOccurred())
	return ip
}

// collect drains a run into its events.
func collect(ip *interp.Interpreter, tEnd float64) ([]interp.Event, error) {
	var events []interp.Event
	for ev, err := range ip.Run(context.Background(), tEnd) {
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	return events, nil
}

var _ = Describe("Interpreter", func() {
	Describe("lifecycle", func() {
		It("rejects initialization before set up", func() {
			ip := newInterpreter(advanceCode())
			_, err := ip.Initialize(context.Background())
			Expect(err).To(MatchError(ContainSubstring("before SetUp")))
		})

		It("rejects running before initialization", func() {
			ip := newInterpreter(advanceCode())
			Expect(ip.SetUp(0, 0.5, map[string]expr.Value{"y": 0.0}, nil)).To(Succeed())
			_, err := collect(ip, 1)
			Expect(err).To(MatchError(ContainSubstring("before Initialize")))
		})

		It("rejects reserved component names", func() {
			ip := newInterpreter(advanceCode())
			err := ip.SetUp(0, 0.5, map[string]expr.Value{"<state>y": 0.0}, nil)
			Expect(err).To(MatchError(ContainSubstring("reserved prefix")))
		})

		It("rejects double initialization", func() {
			ip := newInterpreter(advanceCode())
			Expect(ip.SetUp(0, 0.5, map[string]expr.Value{"y": 0.0}, nil)).To(Succeed())
			_, err := ip.Initialize(context.Background())
			Expect(err).NotTo(HaveOccurred())
			_, err = ip.Initialize(context.Background())
			Expect(err).To(MatchError(ContainSubstring("already initialized")))
		})
	})

	Describe("time stepping", func() {
		It("reaches the final time exactly when dt divides the interval", func() {
			ip := newInterpreter(advanceCode())
			Expect(ip.SetUp(0, 0.5, map[string]expr.Value{"y": 0.0}, nil)).To(Succeed())
			_, err := ip.Initialize(context.Background())
			Expect(err).NotTo(HaveOccurred())

			events, err := collect(ip, 2.5)
			Expect(err).NotTo(HaveOccurred())

			completed := 0
			for _, ev := range events {
				if _, ok := ev.(interp.StepCompleted); ok {
					completed++
				}
			}
			Expect(completed).To(Equal(5))
			Expect(ip.T()).To(Equal(2.5))

			y, ok := ip.State("y")
			Expect(ok).To(BeTrue())
			Expect(y).To(Equal(2.5))
		})

		It("clamps the final step to land on the final time", func() {
			ip := newInterpreter(advanceCode())
			Expect(ip.SetUp(0, 0.4, map[string]expr.Value{"y": 0.0}, nil)).To(Succeed())
			_, err := ip.Initialize(context.Background())
			Expect(err).NotTo(HaveOccurred())

			events, err := collect(ip, 1.0)
			Expect(err).NotTo(HaveOccurred())

			var times []float64
			for _, ev := range events {
				if sc, ok := ev.(interp.StepCompleted); ok {
					times = append(times, sc.T)
				}
			}
			Expect(times).To(HaveLen(3))
			Expect(times[2]).To(BeNumerically("~", 1.0, 1e-12))
			Expect(ip.Dt()).To(BeNumerically("~", 0.2, 1e-12))
		})

		It("stops iteration cleanly when the consumer breaks early", func() {
			ip := newInterpreter(advanceCode())
			Expect(ip.SetUp(0, 0.5, map[string]expr.Value{"y": 0.0}, nil)).To(Succeed())
			_, err := ip.Initialize(context.Background())
			Expect(err).NotTo(HaveOccurred())

			for ev, err := range ip.Run(context.Background(), 10) {
				Expect(err).NotTo(HaveOccurred())
				if _, ok := ev.(interp.StepCompleted); ok {
					break
				}
			}
			Expect(ip.T()).To(Equal(0.5))
		})

		It("honors context cancellation", func() {
			ip := newInterpreter(advanceCode())
			Expect(ip.SetUp(0, 0.5, map[string]expr.Value{"y": 0.0}, nil)).To(Succeed())
			_, err := ip.Initialize(context.Background())
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			for _, err := range ip.Run(ctx, 10) {
				Expect(err).To(MatchError(context.Canceled))
			}
		})
	})

	Describe("failed steps", func() {
		// The step abandons itself until dt has been halved below the
		// threshold, then proceeds.
		failingCode := func() *ir.Code {
			return buildCode(func(init, step *ir.Builder) {
				step.If(expr.MustParse("`<dt>` > 0.25"),
					func(then *ir.Builder) {
						then.Assign("<dt>", expr.MustParse("0.5*`<dt>`"))
						then.FailStep()
					},
					nil,
				)
				step.Fence()
				step.Assign("<state>y", expr.MustParse("`<state>y` + `<dt>`"))
				step.Assign("<t>", expr.MustParse("`<t>` + `<dt>`"))
			})
		}

		It("retries without advancing time and keeps adjusted persistent state", func() {
			ip := newInterpreter(failingCode())
			Expect(ip.SetUp(0, 1.0, map[string]expr.Value{"y": 0.0}, nil)).To(Succeed())
			_, err := ip.Initialize(context.Background())
			Expect(err).NotTo(HaveOccurred())

			var sequence []interp.Event
			for ev, err := range ip.Run(context.Background(), 1.0) {
				Expect(err).NotTo(HaveOccurred())
				sequence = append(sequence, ev)
			}

			// Two retries halve dt from 1.0 to 0.25, then four steps of 0.25
			// reach the final time.
			Expect(sequence).To(Equal([]interp.Event{
				interp.StepFailed{T: 0},
				interp.StepFailed{T: 0},
				interp.StepCompleted{T: 0.25},
				interp.StepCompleted{T: 0.5},
				interp.StepCompleted{T: 0.75},
				interp.StepCompleted{T: 1.0},
			}))
			Expect(ip.T()).To(Equal(1.0))
		})

		It("gives up after too many consecutive failures", func() {
			code := buildCode(func(init, step *ir.Builder) {
				step.FailStep()
			})
			ip := newInterpreter(code)
			Expect(ip.SetUp(0, 0.5, map[string]expr.Value{"y": 0.0}, nil)).To(Succeed())
			_, err := ip.Initialize(context.Background())
			Expect(err).NotTo(HaveOccurred())

			_, err = collect(ip, 1)
			Expect(err).To(MatchError(ContainSubstring("failed")))
		})
	})

	Describe("observations", func() {
		It("delivers initialization observations through Initialize", func() {
			code := buildCode(func(init, step *ir.Builder) {
				init.Observe("y", expr.V("<t>"), expr.V("<state>y"))
				step.Assign("<t>", expr.MustParse("`<t>` + `<dt>`"))
			})
			ip := newInterpreter(code)
			Expect(ip.SetUp(0, 0.5, map[string]expr.Value{"y": 7.0}, nil)).To(Succeed())

			events, err := ip.Initialize(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(Equal([]interp.Event{
				interp.StateComputed{ID: "y", Time: 0, Value: 7.0},
			}))
		})

		It("withholds observations from failed attempts", func() {
			// The observation is emitted before the step fails; it must not
			// surface.
			code := buildCode(func(init, step *ir.Builder) {
				step.Observe("y", expr.V("<t>"), expr.V("<state>y"))
				step.Fence()
				step.If(expr.MustParse("`<dt>` > 0.25"),
					func(then *ir.Builder) {
						then.Assign("<dt>", expr.MustParse("0.5*`<dt>`"))
						then.FailStep()
					},
					nil,
				)
				step.Fence()
				step.Assign("<t>", expr.MustParse("`<t>` + `<dt>`"))
			})
			ip := newInterpreter(code)
			Expect(ip.SetUp(0, 0.5, map[string]expr.Value{"y": 1.0}, nil)).To(Succeed())
			_, err := ip.Initialize(context.Background())
			Expect(err).NotTo(HaveOccurred())

			events, err := collect(ip, 0.5)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(Equal([]interp.Event{
				interp.StepFailed{T: 0},
				interp.StateComputed{ID: "y", Time: 0, Value: 1.0},
				interp.StepCompleted{T: 0.25},
				interp.StateComputed{ID: "y", Time: 0.25, Value: 1.0},
				interp.StepCompleted{T: 0.5},
			}))
		})

		It("does not leak step-local variables into the next step", func() {
			// tmp only exists when t is still zero; a later step reading it
			// must fail on the undefined name.
			code := buildCode(func(init, step *ir.Builder) {
				step.If(expr.MustParse("`<t>` == 0"),
					func(then *ir.Builder) { then.Assign("tmp", expr.Num(1)) },
					nil,
				)
				step.Fence()
				step.Assign("<state>y", expr.MustParse("`<state>y` + tmp"))
				step.Assign("<t>", expr.MustParse("`<t>` + `<dt>`"))
			})
			ip := newInterpreter(code)
			Expect(ip.SetUp(0, 0.5, map[string]expr.Value{"y": 0.0}, nil)).To(Succeed())
			_, err := ip.Initialize(context.Background())
			Expect(err).NotTo(HaveOccurred())

			_, err = collect(ip, 1)
			Expect(err).To(MatchError(ContainSubstring("undefined variable")))
			Expect(ip.T()).To(Equal(0.5))
		})
	})

	Describe("faults", func() {
		It("surfaces raised faults with their name", func() {
			code := buildCode(func(init, step *ir.Builder) {
				step.Raise("NonFiniteState", "state is not finite")
			})
			ip := newInterpreter(code)
			Expect(ip.SetUp(0, 0.5, map[string]expr.Value{"y": 0.0}, nil)).To(Succeed())
			_, err := ip.Initialize(context.Background())
			Expect(err).NotTo(HaveOccurred())

			_, err = collect(ip, 1)
			var fault *ir.Fault
			Expect(errors.As(err, &fault)).To(BeTrue(), "got %v", err)
			Expect(fault.Name).To(Equal("NonFiniteState"))
		})
	})
})
