package stack

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// composeVersion is the compose file format the stack declares.
const composeVersion = "3.7"

// =============================================================================
// Compose Document Types
// =============================================================================

// The rendered document keeps ${PWD} placeholders for bind-mount sources so
// the file is portable: the runner (or docker-compose) interpolates them at
// launch time.

type composeDoc struct {
	Version  string                     `yaml:"version"`
	Services map[string]*composeService `yaml:"services"`
}

type composeService struct {
	Image       string          `yaml:"image"`
	DependsOn   []string        `yaml:"depends_on,omitempty"`
	Environment []string        `yaml:"environment,omitempty"`
	Logging     *composeLogging `yaml:"logging,omitempty"`
	Volumes     []string        `yaml:"volumes,omitempty"`
	Ports       []string        `yaml:"ports,omitempty"`
	Command     string          `yaml:"command,omitempty"`
}

type composeLogging struct {
	Options map[string]string `yaml:"options"`
}

// =============================================================================
// Render
// =============================================================================

// Render produces the compose YAML document for a mode.
func Render(mode Mode, opts Options) (string, error) {
	opts = opts.withDefaults()

	doc := composeDoc{
		Version: composeVersion,
		Services: map[string]*composeService{
			PostgresService: {
				Image: opts.PostgresImage,
				Environment: []string{
					"POSTGRES_USER=" + opts.DBUser,
					"POSTGRES_PASSWORD=" + opts.DBPassword,
					"POSTGRES_DB=" + opts.DBName,
				},
				Logging: renderLogging(),
				Volumes: []string{
					"${PWD}/" + dataDirName + ":" + dataMountTarget,
				},
			},
		},
	}

	if runner := RunnerService(mode); runner != "" {
		loadEx := "n"
		if opts.LoadExamples {
			loadEx = "y"
		}
		doc.Services[runner] = &composeService{
			Image:     opts.RunnerImage,
			DependsOn: []string{PostgresService},
			Environment: []string{
				"LOAD_EX=" + loadEx,
				"EXECUTOR=" + opts.Executor,
			},
			Logging: renderLogging(),
			Volumes: []string{
				"${PWD}/" + dagsDirName + ":" + dagsMountTarget,
				"${PWD}/" + pluginsDirName + ":" + pluginsMountTarget,
			},
			Ports: []string{
				fmt.Sprintf("%d:%d", opts.WebserverPort, DefaultWebserverPort),
			},
			Command: string(mode),
		}
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal stack file: %w", err)
	}
	return string(out), nil
}

func renderLogging() *composeLogging {
	return &composeLogging{
		Options: map[string]string{
			"max-size": logMaxSize,
			"max-file": logMaxFile,
		},
	}
}
