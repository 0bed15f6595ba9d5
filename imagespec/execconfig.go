package imagespec

import "encoding/json"

// Healthcheck mirrors the OCI/Docker image config healthcheck object. It is
// opaque to the merge engine (replace-on-Some like any other scalar field).
// Only the Test, Interval, Timeout, StartPeriod and Retries keys are
// modeled; any other key in the object is dropped on parse.
type Healthcheck struct {
	Test        []string `json:"Test,omitempty"`
	Interval    int64    `json:"Interval,omitempty"`
	Timeout     int64    `json:"Timeout,omitempty"`
	StartPeriod int64    `json:"StartPeriod,omitempty"`
	Retries     int      `json:"Retries,omitempty"`
}

// ExecutionConfig is the runtime-relevant sub-object of an OCI image config.
// All fields are optional (nil pointer/slice/map = absent); wire field names
// use the capitalized OCI spelling.
type ExecutionConfig struct {
	User         *string           `json:"User,omitempty"`
	ExposedPorts map[string]struct{} `json:"ExposedPorts,omitempty"`
	Env          []string          `json:"Env,omitempty"`
	Entrypoint   []string          `json:"Entrypoint,omitempty"`
	Cmd          []string          `json:"Cmd,omitempty"`
	Volumes      map[string]struct{} `json:"Volumes,omitempty"`
	WorkingDir   *string           `json:"WorkingDir,omitempty"`
	Labels       map[string]string `json:"Labels,omitempty"`
	StopSignal   *string           `json:"StopSignal,omitempty"`
	Memory       *int64            `json:"Memory,omitempty"`
	MemorySwap   *int64            `json:"MemorySwap,omitempty"`
	CpuShares    *int64            `json:"CpuShares,omitempty"`
	Healthcheck  *Healthcheck      `json:"Healthcheck,omitempty"`
}

// execConfigAliases carries the lowercase spellings accepted on read:
// user, entrypoint, env, cmd, entry_point.
type execConfigAliases struct {
	User       *string  `json:"user,omitempty"`
	Env        []string `json:"env,omitempty"`
	Entrypoint []string `json:"entrypoint,omitempty"`
	EntryPoint []string `json:"entry_point,omitempty"`
	Cmd        []string `json:"cmd,omitempty"`
}

func (e *ExecutionConfig) UnmarshalJSON(data []byte) error {
	type plain ExecutionConfig
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = ExecutionConfig(p)

	var alias execConfigAliases
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	if e.User == nil {
		e.User = alias.User
	}
	if e.Env == nil {
		e.Env = alias.Env
	}
	if e.Entrypoint == nil {
		e.Entrypoint = alias.Entrypoint
	}
	if e.Entrypoint == nil {
		e.Entrypoint = alias.EntryPoint
	}
	if e.Cmd == nil {
		e.Cmd = alias.Cmd
	}
	return nil
}

// UpdateWith applies delta onto e in place: most scalars replace on Some,
// Env/Volumes concatenate, Labels map-extend with delta winning on key
// collision.
func (e *ExecutionConfig) UpdateWith(delta ExecutionConfig) {
	if delta.User != nil {
		e.User = delta.User
	}
	if delta.ExposedPorts != nil {
		e.ExposedPorts = delta.ExposedPorts
	}
	if delta.Env != nil {
		e.Env = append(append([]string{}, e.Env...), delta.Env...)
	}
	if delta.Entrypoint != nil {
		e.Entrypoint = delta.Entrypoint
	}
	if delta.Cmd != nil {
		e.Cmd = delta.Cmd
	}
	if delta.Volumes != nil {
		merged := make(map[string]struct{}, len(e.Volumes)+len(delta.Volumes))
		for k := range e.Volumes {
			merged[k] = struct{}{}
		}
		for k := range delta.Volumes {
			merged[k] = struct{}{}
		}
		e.Volumes = merged
	}
	if delta.WorkingDir != nil {
		e.WorkingDir = delta.WorkingDir
	}
	if delta.Labels != nil {
		if e.Labels == nil {
			e.Labels = make(map[string]string, len(delta.Labels))
		}
		for k, v := range delta.Labels {
			e.Labels[k] = v
		}
	}
	if delta.StopSignal != nil {
		e.StopSignal = delta.StopSignal
	}
	if delta.Memory != nil {
		e.Memory = delta.Memory
	}
	if delta.MemorySwap != nil {
		e.MemorySwap = delta.MemorySwap
	}
	if delta.CpuShares != nil {
		e.CpuShares = delta.CpuShares
	}
	if delta.Healthcheck != nil {
		e.Healthcheck = delta.Healthcheck
	}
}
