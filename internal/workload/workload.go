// Package workload holds the declared description of the three fixed
// computational workloads (spec.md §1, §9 "No automatic workload
// generation"). The workloads and their scale parameters are data, not
// code generated at runtime; this package is the single place they are
// declared so internal/runspec can validate a run-specification file
// against them.
package workload

// Task identifies one of the three fixed benchmark kernels.
type Task string

const (
	// TaskMandelbrot renders a Mandelbrot set of Size x Size pixels,
	// iterating each point up to Iterations times.
	TaskMandelbrot Task = "mandelbrot"
	// TaskRecords processes a synthetic batch of Size JSON-like records
	// (parse, filter, aggregate), Iterations unused (one pass per call).
	TaskRecords Task = "records"
	// TaskMatmul multiplies two dense Size x Size matrices of float64.
	TaskMatmul Task = "matmul"
)

// Scale is one declared (size, iteration, seed) parameter block for a task.
// Scale.Name is the stable identifier used in cell identities and in the
// reference-digest map's key, e.g. "small", "medium", "large".
type Scale struct {
	Name       string
	Size       int
	Iterations int
	Seed       uint32
}

// Definition is the full declared parameter set for one task: its name and
// the scales it is benchmarked at.
type Definition struct {
	Task   Task
	Scales []Scale
}

// Known is the fixed, declared table of tasks and scales. It is the
// authoritative set internal/runspec validates run-specification entries
// against; a cell naming a (task, scale) pair absent here is CONFIG_INVALID.
var Known = []Definition{
	{
		Task: TaskMandelbrot,
		Scales: []Scale{
			{Name: "small", Size: 256, Iterations: 50, Seed: 1},
			{Name: "medium", Size: 512, Iterations: 100, Seed: 2},
			{Name: "large", Size: 1024, Iterations: 200, Seed: 3},
		},
	},
	{
		Task: TaskRecords,
		Scales: []Scale{
			{Name: "small", Size: 1_000, Iterations: 1, Seed: 11},
			{Name: "medium", Size: 10_000, Iterations: 1, Seed: 12},
			{Name: "large", Size: 100_000, Iterations: 1, Seed: 13},
		},
	},
	{
		Task: TaskMatmul,
		Scales: []Scale{
			{Name: "small", Size: 64, Iterations: 1, Seed: 21},
			{Name: "medium", Size: 128, Iterations: 1, Seed: 22},
			{Name: "large", Size: 256, Iterations: 1, Seed: 23},
		},
	},
}

// Lookup finds the Scale declared for (task, scaleName), reporting ok=false
// if the task or scale name is not part of the known declared set.
func Lookup(task Task, scaleName string) (Scale, bool) {
	for _, def := range Known {
		if def.Task != task {
			continue
		}
		for _, s := range def.Scales {
			if s.Name == scaleName {
				return s, true
			}
		}
	}
	return Scale{}, false
}

// Tasks returns the set of known task identifiers, in declared order.
func Tasks() []Task {
	out := make([]Task, 0, len(Known))
	for _, def := range Known {
		out = append(out, def.Task)
	}
	return out
}
