package shell

// ZshPlugin loads completions and defines worklog_prompt, which prints the
// issue keys of the running timer and nothing when no timer runs. It reads
// the timer file directly so the prompt never waits on the network.
const ZshPlugin = `# worklog shell plugin, generated by 'worklog shell install zsh'. Do not edit.
# Source this file from your ~/.zshrc:
#   source ~/.config/jira-worklogger/worklog.plugin.zsh

(( $+commands[worklog] )) && source <(worklog completion zsh)

_worklog_timer_file="${XDG_DATA_HOME:-$HOME/.local/share}/jira-worklogger/timer.json"

worklog_prompt() {
  [[ -f "$_worklog_timer_file" ]] || return
  local keys
  keys=$(awk '/"issue_keys"/{f=1} f{while(match($0,/[A-Z][A-Z0-9_]*-[0-9]+/)){printf "%s%s",s,substr($0,RSTART,RLENGTH);s=",";$0=substr($0,RSTART+RLENGTH)}} f&&/\]/{exit}' "$_worklog_timer_file")
  [[ -n "$keys" ]] && print -n "⏱ $keys "
}

setopt prompt_subst
`
