// Package build runs the production pipeline for a Node.js application.
//
// A build is a fixed sequence of stages:
//
//	prepare   empty the build directory, create the temp directory
//	bundle    bundle the entry point into <temp>/<shortcut>.js
//	binaries  compile one executable per linux-x64/windows-x64 target
//	node      plain Node.js package
//	docker    Docker context with Dockerfile and docker-compose.yml
//	linux     systemd unit and install script
//	windows   WinSW service wrapper
//	publish   upload the build directory (optional)
//	cleanup   remove the temp directory
//
// Stages run one after another. The first failure stops the build and
// leaves the temp directory in place.
//
// # Usage
//
//	b := build.New(cfg, build.Options{Console: console.New(os.Stdout, true)})
//	report, err := b.Build(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(report.Duration)
//
// # Output Structure
//
//	build/
//	├── node/              # bundle + copied files
//	├── docker/            # bundle, Dockerfile, docker-compose.yml
//	├── linux-x64/
//	│   ├── <shortcut>     # executable
//	│   └── install/       # <shortcut>.service, <shortcut>.sh
//	└── windows-x64/
//	    ├── <shortcut>.exe
//	    └── service/       # service.exe, service.xml
package build
