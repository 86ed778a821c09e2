package emit

import (
	"path/filepath"
	"text/template"

	"github.com/nodebuilder-go/nodebuilder/internal/config"
	"github.com/nodebuilder-go/nodebuilder/internal/console"
	"github.com/nodebuilder-go/nodebuilder/internal/errors"
)

// InstallDir is the installer directory inside the linux-x64 target.
const InstallDir = "install"

type serviceData struct {
	Shortcut string
	Dir      string
}

var systemdUnitTmpl = template.Must(template.New("unit").Parse(`[Unit]
Description={{.Shortcut}}

[Service]
ExecStart={{.Dir}}/{{.Shortcut}}
Restart=always
WorkingDirectory={{.Dir}}

[Install]
WantedBy=multi-user.target
`))

var installScriptTmpl = template.Must(template.New("install").Parse(`mkdir -p {{.Dir}}
chmod 0777 {{.Dir}}
cp ../{{.Shortcut}} {{.Dir}}
cp ./{{.Shortcut}}.service /etc/systemd/system/{{.Shortcut}}.service
systemctl daemon-reload
systemctl start {{.Shortcut}}
systemctl enable {{.Shortcut}}
systemctl status {{.Shortcut}}
`))

func newServiceData(cfg *config.Config) serviceData {
	return serviceData{Shortcut: cfg.Shortcut, Dir: cfg.ServiceDir()}
}

// SystemdUnit renders the systemd unit for cfg.
func SystemdUnit(cfg *config.Config) (string, error) {
	return render(systemdUnitTmpl, newServiceData(cfg))
}

// InstallScript renders the shell installer for cfg.
func InstallScript(cfg *config.Config) (string, error) {
	return render(installScriptTmpl, newServiceData(cfg))
}

// LinuxService writes <build>/linux-x64/install/<shortcut>.service and the
// executable <shortcut>.sh that installs and starts it.
func LinuxService(cfg *config.Config, log *console.Console) (*Output, error) {
	dir := filepath.Join(cfg.TargetDir(string(config.EnvLinuxX64)), InstallDir)
	out := &Output{Dir: dir}

	unit, err := SystemdUnit(cfg)
	if err != nil {
		return nil, errors.New("E202").Wrap(err)
	}
	unitPath := filepath.Join(dir, cfg.Shortcut+".service")
	if err := writeArtifact(unitPath, []byte(unit), 0o644); err != nil {
		return nil, err
	}
	log.Info("Service configuration saved to `%s`.", unitPath)
	out.add(unitPath)

	script, err := InstallScript(cfg)
	if err != nil {
		return nil, errors.New("E202").Wrap(err)
	}
	scriptPath := filepath.Join(dir, cfg.Shortcut+".sh")
	if err := writeArtifact(scriptPath, []byte(script), 0o755); err != nil {
		return nil, err
	}
	log.Info("Install script saved to `%s`.", scriptPath)
	out.add(scriptPath)

	return out, nil
}
