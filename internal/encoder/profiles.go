package encoder

import "strings"

// Tier orders hardware probe priority. Lower tiers are tried first.
type Tier int

const (
	TierNVENC Tier = iota + 1
	TierQSV
	TierVAAPI
	TierSoftware
)

func (t Tier) String() string {
	switch t {
	case TierNVENC:
		return "nvenc"
	case TierQSV:
		return "qsv"
	case TierVAAPI:
		return "vaapi"
	case TierSoftware:
		return "software"
	default:
		return "unknown"
	}
}

// Profile describes a working encoder choice: the argument fragments the
// executor splices into its command line plus metadata for logging.
type Profile struct {
	Name      string
	Tier      Tier
	Codec     string
	InputArgs []string
	VideoArgs []string
	Hardware  bool
	Detected  bool
}

const renderNode = "/dev/dri/renderD128"

func nvencProfile() Profile {
	return Profile{
		Name:     "nvenc",
		Tier:     TierNVENC,
		Codec:    "hevc_nvenc",
		Hardware: true,
		VideoArgs: []string{
			"-c:v", "hevc_nvenc",
			"-preset", "p5",
			"-cq", "25",
		},
	}
}

func qsvProfile() Profile {
	return Profile{
		Name:     "qsv",
		Tier:     TierQSV,
		Codec:    "hevc_qsv",
		Hardware: true,
		InputArgs: []string{
			"-init_hw_device", "qsv=qsv0",
			"-filter_hw_device", "qsv0",
		},
		VideoArgs: []string{
			"-vf", "hwupload=extra_hw_frames=64,format=qsv",
			"-c:v", "hevc_qsv",
			"-global_quality", "25",
		},
	}
}

func vaapiProfile() Profile {
	return Profile{
		Name:     "vaapi",
		Tier:     TierVAAPI,
		Codec:    "hevc_vaapi",
		Hardware: true,
		InputArgs: []string{
			"-init_hw_device", "vaapi=vaapi0:" + renderNode,
			"-filter_hw_device", "vaapi0",
		},
		VideoArgs: []string{
			"-vf", "format=nv12,hwupload",
			"-c:v", "hevc_vaapi",
			"-qp", "25",
		},
	}
}

func softwareProfile() Profile {
	return Profile{
		Name:  "software",
		Tier:  TierSoftware,
		Codec: "libx264",
		VideoArgs: []string{
			"-c:v", "libx264",
			"-preset", "medium",
			"-crf", "20",
		},
	}
}

type tierSpec struct {
	profile Profile
	devices []string
}

func hardwareTiers() []tierSpec {
	return []tierSpec{
		{
			profile: nvencProfile(),
			devices: []string{"/dev/nvidia0", "/dev/nvidiactl", "/dev/nvidia-uvm"},
		},
		{
			profile: qsvProfile(),
			devices: []string{renderNode},
		},
		{
			profile: vaapiProfile(),
			devices: []string{renderNode},
		},
	}
}

// ProfileByName resolves a configured override to its profile.
func ProfileByName(name string) (Profile, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "nvenc":
		return nvencProfile(), true
	case "qsv":
		return qsvProfile(), true
	case "vaapi":
		return vaapiProfile(), true
	case "software", "cpu", "libx264":
		return softwareProfile(), true
	default:
		return Profile{}, false
	}
}

// ProfileNames lists the accepted encoder override names.
func ProfileNames() []string {
	return []string{"nvenc", "qsv", "vaapi", "software"}
}
