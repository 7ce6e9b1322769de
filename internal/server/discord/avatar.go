package discord

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	cdnBaseURL = "https://cdn.discordapp.com"

	// animatedAvatarPrefix marks avatar hashes that point at animated
	// images on the CDN.
	animatedAvatarPrefix = "a_"

	// defaultAvatarCount is the number of default embed avatars Discord
	// serves; the legacy discriminator selects one of them.
	defaultAvatarCount = 5
)

// BuildAvatarURL derives the CDN URL for a user's avatar. A present hash
// yields a user avatar URL with a gif extension when the hash carries the
// animated marker, png otherwise. An absent hash falls back to one of the
// default embed avatars, indexed by discriminator modulo the default count
// (index 0 when no discriminator is set).
func BuildAvatarURL(user *ProviderUser) string {
	if user.Avatar != nil {
		ext := "png"
		if strings.HasPrefix(*user.Avatar, animatedAvatarPrefix) {
			ext = "gif"
		}
		return fmt.Sprintf("%s/avatars/%s/%s.%s?size=1024", cdnBaseURL, user.ID, *user.Avatar, ext)
	}

	return fmt.Sprintf("%s/embed/avatars/%d.png", cdnBaseURL, defaultAvatarIndex(user.Discriminator))
}

func defaultAvatarIndex(discriminator *string) uint32 {
	if discriminator == nil {
		return 0
	}
	n, err := strconv.ParseUint(*discriminator, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(n % defaultAvatarCount)
}
