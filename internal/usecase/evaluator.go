// Package usecase contains application business logic.
package usecase

import (
	"net/url"
	"time"

	"github.com/eliteGoblin/focusd/sub_mon/internal/domain"
	"github.com/eliteGoblin/focusd/sub_mon/internal/policy"
)

// Evaluate decides whether a navigation to rawURL must be redirected.
//
// An active daily lock forces enforcement on even when the user turned
// blocking off. Malformed URLs are allowed, never reported.
func Evaluate(rawURL string, settings domain.Settings, now time.Time) domain.Decision {
	if !settings.EffectiveEnabled(now) {
		return allow(domain.ReasonDisabled, "")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return allow(domain.ReasonInvalidURL, "")
	}
	if !policy.IsRedditHost(u.Hostname()) {
		return allow(domain.ReasonNotReddit, "")
	}

	id, ok := policy.SubredditFromPath(u.Path)
	if !ok {
		return allow(domain.ReasonNoSubreddit, "")
	}
	if !settings.BlockList.Contains(id) {
		return allow(domain.ReasonNotListed, id)
	}
	return domain.Decision{
		Action:    domain.ActionBlock,
		Subreddit: id,
		Reason:    domain.ReasonBlocked,
	}
}

func allow(reason, subreddit string) domain.Decision {
	return domain.Decision{
		Action:    domain.ActionAllow,
		Subreddit: subreddit,
		Reason:    reason,
	}
}
