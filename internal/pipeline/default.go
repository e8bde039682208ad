package pipeline

import "github.com/crossgate-ci/crossgate/internal/domain"

// Default returns the built-in pipeline definition: the full gate sequence
// on a Linux runner plus a build/test pass on a Windows runner, watching
// pushes and pull requests against main.
func Default() *Pipeline {
	return &Pipeline{
		On:       []domain.EventKind{domain.EventPush, domain.EventPullRequest},
		Branches: []string{"main"},
		Environments: []Environment{
			{
				ID:        "linux-default",
				Platform:  domain.PlatformLinux,
				Toolchain: "default",
				Stages: []Stage{
					{Name: "lint-check", Steps: []Step{
						{Name: "clippy", Run: "cargo clippy --workspace -- -D warnings"},
					}},
					{Name: "format-check", Steps: []Step{
						{Name: "rustfmt", Run: "cargo fmt --all -- --check"},
					}},
					{Name: "test", Steps: []Step{
						{Name: "unit-tests", Run: "make tests"},
					}},
					{Name: "doc-build", Steps: []Step{
						{Name: "rustdoc", Run: "cargo doc --no-deps", Env: map[string]string{"RUSTDOCFLAGS": "-D warnings"}},
					}},
					{Name: "stress-check", Steps: []Step{
						{Name: "stress", Run: "make stress"},
					}},
					{Name: "package-size-check", Steps: []Step{
						{Name: "check-size", Run: "make check-size"},
					}},
				},
			},
			{
				ID:        "windows-stable",
				Platform:  domain.PlatformWindows,
				Toolchain: "stable",
				Stages: []Stage{
					{Name: "build-check", Steps: []Step{
						{Name: "build", Run: "cargo build --all-targets"},
					}},
					{Name: "test", Steps: []Step{
						{Name: "unit-tests", Run: "cargo test"},
					}},
				},
			},
		},
	}
}
