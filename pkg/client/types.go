package client

import "fmt"

// Console is a console resource as returned by the consoles API.
type Console struct {
	ID               int    `json:"id" yaml:"id"`
	User             string `json:"user" yaml:"user"`
	Name             string `json:"name" yaml:"name"`
	Executable       string `json:"executable" yaml:"executable"`
	Arguments        string `json:"arguments" yaml:"arguments"`
	WorkingDirectory string `json:"working_directory" yaml:"working_directory"`
	URL              string `json:"console_url" yaml:"console_url"`
	FrameURL         string `json:"console_frame_url" yaml:"console_frame_url"`
}

func (c Console) String() string {
	if c.Name != "" {
		return fmt.Sprintf("%d (%s)", c.ID, c.Name)
	}
	return fmt.Sprintf("%d (%s)", c.ID, c.Executable)
}
