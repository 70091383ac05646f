package connectors

const (
	TopicConnStatus     = "conn.status"
	TopicText           = "adv.text"
	TopicMessage        = "adv.message"
	TopicMessageSent    = "message.sent"
	TopicPeer           = "peer.update"
	TopicPeerDiscovered = "peer.discovered"
	TopicRawAdv         = "raw.adv"
)
