package emit

import (
	"encoding/xml"
	"path/filepath"

	"github.com/nodebuilder-go/nodebuilder/internal/config"
	"github.com/nodebuilder-go/nodebuilder/internal/console"
	"github.com/nodebuilder-go/nodebuilder/internal/errors"
	"github.com/nodebuilder-go/nodebuilder/internal/fsutil"
)

const (
	// ServiceDir is the wrapper directory inside the windows-x64 target.
	ServiceDir = "service"

	ServiceExeName = "service.exe"
	ServiceXMLName = "service.xml"
)

// restartDelays are the WinSW onfailure delays, one restart per failure.
var restartDelays = []string{"10 sec", "30 sec", "1 min", "2 min", "3 min"}

// ServiceConfig is the WinSW service.xml document.
type ServiceConfig struct {
	XMLName          xml.Name    `xml:"configuration"`
	ID               string      `xml:"id"`
	Name             string      `xml:"name"`
	Description      string      `xml:"description"`
	Executable       string      `xml:"executable"`
	WorkingDirectory string      `xml:"workingdirectory"`
	OnFailure        []OnFailure `xml:"onfailure"`
	ResetFailure     string      `xml:"resetfailure"`
	Priority         string      `xml:"priority"`
	Log              LogMode     `xml:"log"`
}

// OnFailure is a WinSW failure action.
type OnFailure struct {
	Action string `xml:"action,attr"`
	Delay  string `xml:"delay,attr"`
}

// LogMode selects how WinSW rotates the wrapped process's logs.
type LogMode struct {
	Mode string `xml:"mode,attr"`
}

// WinSWConfig builds the service descriptor for cfg. The wrapper lives in
// service/ next to the executable.
func WinSWConfig(cfg *config.Config) ServiceConfig {
	sc := ServiceConfig{
		ID:               cfg.Shortcut,
		Name:             cfg.Shortcut,
		Description:      cfg.Shortcut,
		Executable:       "%BASE%/../" + cfg.Shortcut + ".exe",
		WorkingDirectory: "%BASE%/..",
		ResetFailure:     "10 min",
		Priority:         "High",
		Log:              LogMode{Mode: "reset"},
	}
	for _, d := range restartDelays {
		sc.OnFailure = append(sc.OnFailure, OnFailure{Action: "restart", Delay: d})
	}
	return sc
}

// MarshalServiceXML renders the descriptor as indented XML with a declaration.
func MarshalServiceXML(sc ServiceConfig) ([]byte, error) {
	body, err := xml.MarshalIndent(sc, "", "  ")
	if err != nil {
		return nil, err
	}
	data := append([]byte(xml.Header), body...)
	return append(data, '\n'), nil
}

// WindowsService writes <build>/windows-x64/service: the WinSW wrapper
// copied from winswPath as service.exe and its service.xml.
func WindowsService(cfg *config.Config, winswPath string, log *console.Console) (*Output, error) {
	dir := filepath.Join(cfg.TargetDir(string(config.EnvWindowsX64)), ServiceDir)
	out := &Output{Dir: dir}

	exe := filepath.Join(dir, ServiceExeName)
	if err := fsutil.CopyFile(winswPath, exe); err != nil {
		return nil, errors.New("E201").WithPath(winswPath).Wrap(err)
	}
	log.Info("Copied `%s` to `%s`.", winswPath, exe)
	out.add(exe)

	data, err := MarshalServiceXML(WinSWConfig(cfg))
	if err != nil {
		return nil, errors.New("E202").WithPath(ServiceXMLName).Wrap(err)
	}
	xmlPath := filepath.Join(dir, ServiceXMLName)
	if err := writeArtifact(xmlPath, data, 0o644); err != nil {
		return nil, err
	}
	log.Info("Service configuration saved to `%s`.", xmlPath)
	out.add(xmlPath)

	return out, nil
}
