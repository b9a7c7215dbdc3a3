package models

// Artifact kind tags as emitted by the capture provider. Token-bearing kinds
// carry a JWT in Value; the rest are plain session cookies.
const (
	ArtifactLastLoginJWT = "cookie_last_login_jwt"
	ArtifactCellJWT      = "cookie_cell_jwt"
	ArtifactGongSession  = "cookie_gong_session"
	ArtifactAWSALB       = "cookie_aws_alb"
	ArtifactAWSALBTG     = "cookie_aws_albtg"
	ArtifactGongUserID   = "cookie_gong_user_id"
	ArtifactGongGroupID  = "cookie_gong_group_id"
)

// Artifact is a single piece of captured authentication material. The capture
// provider may have already decoded a JWT artifact, in which case Decoded is set
// and the value does not need to be parsed again.
type Artifact struct {
	Kind    string      `json:"kind"`
	Name    string      `json:"name,omitempty"`
	Value   string      `json:"value"`
	Decoded *JWTPayload `json:"decodedPayload,omitempty"`
}
