package recipe

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"
)

// dockerfileTemplate is the deploy artifact the launcher generates: copy the
// manifest first so dependency installation stays cached across source-only
// rebuilds, then the full tree, then start the server bound to the
// advertised host and port.
const dockerfileTemplate = `FROM {{.BaseImage}}
WORKDIR {{.WorkDir}}
COPY {{.Manifest}} ./
RUN {{.Install}}
COPY . .
EXPOSE {{.Port}}
CMD {{.CMD}}
`

type dockerfileData struct {
	BaseImage string
	WorkDir   string
	Manifest  string
	Install   string
	Port      int
	CMD       string
}

// RenderDockerfile produces the Dockerfile for the recipe. The install
// command template may reference {{.Manifest}}.
func (r *Recipe) RenderDockerfile() (string, error) {
	install, err := renderInstall(r.Build.InstallCommand, r.Build.Manifest)
	if err != nil {
		return "", err
	}

	command := r.Build.ServerCommand
	if len(command) == 0 {
		command = []string{
			"uvicorn", r.App.EntryPoint,
			"--host", r.Runtime.Host,
			"--port", strconv.Itoa(r.Runtime.Port),
		}
	}

	tmpl := template.Must(template.New("dockerfile").Parse(dockerfileTemplate))
	var buf bytes.Buffer
	err = tmpl.Execute(&buf, dockerfileData{
		BaseImage: r.Build.BaseImage,
		WorkDir:   r.Build.WorkDir,
		Manifest:  r.Build.Manifest,
		Install:   install,
		Port:      r.Runtime.Port,
		CMD:       execForm(command),
	})
	if err != nil {
		return "", fmt.Errorf("rendering dockerfile: %w", err)
	}
	return buf.String(), nil
}

// execForm renders a command in Dockerfile exec form.
func execForm(command []string) string {
	quoted := make([]string, len(command))
	for i, part := range command {
		quoted[i] = strconv.Quote(part)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func renderInstall(command, manifest string) (string, error) {
	cmd := command
	if strings.TrimSpace(cmd) == "" {
		cmd = DefaultInstallCommand
	}
	tmpl, err := template.New("install").Parse(cmd)
	if err != nil {
		return "", fmt.Errorf("parsing install command: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Manifest string }{Manifest: manifest}); err != nil {
		return "", fmt.Errorf("rendering install command: %w", err)
	}
	return buf.String(), nil
}
