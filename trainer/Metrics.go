package trainer

// Names of the metrics a Trainer tracks
const (
	EpisodicReturn  = "rollout/episodic_return"
	EpisodicLength  = "rollout/episodic_length"
	SPS             = "rollout/SPS"
	MeanTrainReturn = "rollout/mean_train_return"

	ActorLoss    = "train/actor_loss"
	CriticLoss   = "train/critic_loss"
	Entropy      = "train/entropy"
	OldApproxKL  = "train/old_approx_kl"
	ApproxKL     = "train/approx_kl"
	ClipFrac     = "train/clipfrac"
	ExplainedVar = "train/explained_var"
	LearningRate = "train/learning_rate"
	GradNorm     = "train/grad_norm"

	RSS        = "system/rss_mb"
	CPUPercent = "system/cpu_percent"
)

// finalFraction is the fraction of the most recent episodes averaged
// into the mean training return
const finalFraction = 0.05
