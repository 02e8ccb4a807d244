package openstack

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"text/template"

	"github.com/alessio/shellescape"
	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/gammadia/spawner/provisioner"
	"github.com/samber/lo"
)

// userDataTemplate boots the node container once the server is up.
// The env file goes through base64 so that no value can end the script early.
var userDataTemplate = template.Must(template.New("user-data").
	Funcs(sprig.TxtFuncMap()).
	Funcs(template.FuncMap{"shellquote": shellescape.Quote}).
	Parse(`#!/bin/sh
set -eu
mkdir -p /etc/spawner
echo {{ .EnvFile | b64enc }} | base64 -d > /etc/spawner/node.env
chmod 600 /etc/spawner/node.env
docker run --detach --restart=no --name {{ shellquote .Name }} --env-file /etc/spawner/node.env --publish {{ .Port }}:{{ .Port }} {{ shellquote .Image }}
`))

func userData(spec *provisioner.ResourceSpec) ([]byte, error) {
	var envFile strings.Builder
	names := lo.Keys(spec.Env)
	slices.Sort(names)
	for _, name := range names {
		value := spec.Env[name]
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("value of %s contains a line break", name)
		}
		fmt.Fprintf(&envFile, "%s=%s\n", name, value)
	}

	var buf bytes.Buffer
	if err := userDataTemplate.Execute(&buf, map[string]any{
		"Name":    spec.Name,
		"Image":   spec.Image,
		"Port":    spec.Port,
		"EnvFile": envFile.String(),
	}); err != nil {
		return nil, fmt.Errorf("failed to render user data for '%s': %w", spec.Name, err)
	}
	return buf.Bytes(), nil
}
