package version

import (
	"bytes"
	"encoding/json"
	"fmt"
	"runtime"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/trufnetwork/kwil-db/app/shared/display"
)

const infoTemplate = `
 Version:	{{.Version}}
 Git commit:	{{.GitCommit}}
 Built:		{{.BuildTime}}
 Go version:	{{.GoVersion}}
 OS/Arch:	{{.Os}}/{{.Arch}}`

// buildInfo is the payload of the version subcommand. display.PrintCmd
// renders it as text or JSON depending on the output format flag.
type buildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Os        string `json:"os"`
	Arch      string `json:"arch"`
}

func (b *buildInfo) MarshalJSON() ([]byte, error) {
	type plain buildInfo
	return json.Marshal((*plain)(b))
}

func (b *buildInfo) MarshalText() ([]byte, error) {
	tmpl, err := template.New("version").Parse(infoTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse version template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, b); err != nil {
		return nil, fmt.Errorf("render version template: %w", err)
	}
	return buf.Bytes(), nil
}

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display the node version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return display.PrintCmd(cmd, &buildInfo{
				Version:   getVersion(),
				GitCommit: getCommit(),
				BuildTime: getBuildTimeDisplay(),
				GoVersion: runtime.Version(),
				Os:        runtime.GOOS,
				Arch:      runtime.GOARCH,
			})
		},
	}
}
