package game

// ResolveWinner 根据秘密数字和按提交顺序排列的猜测计算结果，是纯函数。
//  1. 存在命中秘密的猜测时，最早命中者获胜；若命中的是其前 threshold 次猜测之一，记为 SpeedBonus。
//  2. 否则距离最小者获胜，距离相同时先提交者获胜，记为 ClosestGuess。
//  3. 没有任何猜测时返回 nil。
//
// guesses 会按 Ordinal 排序后再扫描，调用方传入的顺序不影响结果。
func ResolveWinner(secret uint8, speedBonusThreshold uint8, guesses []Guess) *Outcome {
	if len(guesses) == 0 {
		return nil
	}

	ordered := append([]Guess(nil), guesses...)
	sortByOrdinal(ordered)

	for _, g := range ordered {
		if g.SecretGuess != secret {
			continue
		}

		winType := WIN_EXACT_SECRET
		if g.PlayerOrdinal <= speedBonusThreshold {
			winType = WIN_SPEED_BONUS
		}

		return &Outcome{
			Winner:  g.Player,
			WinType: winType,
		}
	}

	// 按提交顺序扫描并维护当前最小距离，只有严格更近才替换，
	// 因此并列时保留最早到达该距离的猜测
	best := ordered[0]
	bestDistance := distance(best.SecretGuess, secret)

	for _, g := range ordered[1:] {
		d := distance(g.SecretGuess, secret)
		if d < bestDistance {
			best = g
			bestDistance = d
		}
	}

	closest := best.Player

	return &Outcome{
		Winner:          best.Player,
		WinType:         WIN_CLOSEST_GUESS,
		ClosestGuesser:  &closest,
		ClosestDistance: &bestDistance,
	}
}

func distance(a, b uint8) uint8 {
	if a > b {
		return a - b
	}

	return b - a
}
