package config

import "fmt"

const (
	templateWorkingDir = "/var/www/app"

	PreDeployEvent  = "pre-deploy"
	DeployEvent     = "deploy"
	PostDeployEvent = "post-deploy"
)

var templateEnvironment = []string{"NODE_ENV=production", "PORT=3000"}

// NewTemplateDeployment returns a skeleton deployment with pre-deploy,
// deploy and post-deploy events that users edit afterwards.
func NewTemplateDeployment(name string) *Deployment {
	failFast := true
	bestEffort := false

	return &Deployment{
		Name:        name,
		Description: fmt.Sprintf("Deployment %s", name),
		WorkingDir:  templateWorkingDir,
		Environment: append([]string(nil), templateEnvironment...),
		Events: []*Event{
			{
				Name:        PreDeployEvent,
				Description: "Commands run before the deployment",
				FailFast:    &failFast,
				Commands: []*Command{
					{
						Command:      "echo 'Starting deployment'",
						Description:  "Announce the deployment",
						IgnoreErrors: true,
					},
				},
			},
			{
				Name:        DeployEvent,
				Description: "Main deployment commands",
				FailFast:    &failFast,
				Commands: []*Command{
					{
						Command:         "git pull origin main",
						Description:     "Fetch the latest changes",
						RollbackCommand: "git reset --hard HEAD~1",
					},
					{
						Command:     "npm ci",
						Description: "Install dependencies",
					},
					{
						Command:     "npm run build",
						Description: "Build the project",
					},
				},
			},
			{
				Name:        PostDeployEvent,
				Description: "Commands run after the deployment",
				FailFast:    &bestEffort,
				Commands: []*Command{
					{
						Command:         "pm2 restart app",
						Description:     "Restart the application",
						RollbackCommand: "pm2 stop app",
					},
					{
						Command:      "echo 'Deployment finished'",
						Description:  "Announce completion",
						IgnoreErrors: true,
					},
				},
			},
		},
	}
}

// CreateTemplateDeployment adds a template deployment to the file at path
// and saves it.
func CreateTemplateDeployment(path, name string) (*Deployment, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	d := NewTemplateDeployment(name)
	if err := cfg.AddDeployment(d); err != nil {
		return nil, err
	}

	if err := cfg.Save(path); err != nil {
		return nil, err
	}
	return d, nil
}
