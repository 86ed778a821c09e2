// Package config loads the build configuration from a project's package.json.
//
// Build settings live under the `builder` key next to the package name and
// version:
//
//	{
//	  "name": "@acme/gateway",
//	  "version": "1.4.0",
//	  "builder": {
//	    "entry": "index.js",
//	    "node": "12.18.2",
//	    "dirs": { "build": "build", "src": "src" },
//	    "environments": ["linux-x64", "windows-x64", "docker"],
//	    "copy": [{ "from": "config.json", "to": "config.json" }],
//	    "docker": {
//	      "image": "node:12-alpine",
//	      "ports": [{ "hostPort": 8080, "containerPort": 80 }]
//	    }
//	  }
//	}
//
// Required fields are checked in a fixed order and the first failure is
// returned. Directories are resolved to absolute paths once; the returned
// Config is read-only for the rest of the run.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Shortcut, cfg.BundlePath())
package config
