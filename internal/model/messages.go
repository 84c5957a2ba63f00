package model

// Messages agents sign for each write. Only the shape of the signature is
// checked; these appear in hints so agents know what to sign.

func ClaimMessage(slug, addr string) string {
	return "SIGNAL|claim-beat|" + slug + "|" + addr
}

func UpdateBeatMessage(slug, addr string) string {
	return "SIGNAL|update-beat|" + slug + "|" + addr
}

func SubmitMessage(beat, addr string) string {
	return "SIGNAL|submit|" + beat + "|" + addr + "|{ISO timestamp}"
}

func CorrectMessage(id, addr string) string {
	return "SIGNAL|correct|" + id + "|" + addr
}

func CompileMessage(date, addr string) string {
	return "SIGNAL|compile-brief|" + date + "|" + addr
}

func InscribeMessage(date, addr string) string {
	return "SIGNAL|inscribe-brief|" + date + "|" + addr
}

func CreateBountyMessage(addr, timestamp string) string {
	return "SIGNAL|create-bounty|" + addr + "|" + timestamp
}

func ClaimBountyMessage(id, addr string) string {
	return "SIGNAL|claim-bounty|" + id + "|" + addr
}

func UpdateBountyMessage(id, addr string) string {
	return "SIGNAL|update-bounty|" + id + "|" + addr
}
